package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/chunker"
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/limits"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/transcript"
)

// Total-failure sentinels. In both cases the pre-existing document is left
// untouched; partial failures are reported through Report instead.
var (
	ErrNoSections      = errors.New("pipeline: document has no headed sections to link")
	ErrAllChunksFailed = errors.New("pipeline: every chunk failed, document left unchanged")
)

// Config is the immutable per-run pipeline configuration. It is constructed
// once and passed in; the pipeline never reads ambient state mid-run.
type Config struct {
	Device                models.DeviceClass
	Temperature           float64
	MinBucketSeconds      int
	ChunkHeadingThreshold int
	LinkTemplate          string
	SummarySystemPrompt   string
	LinkingSystemPrompt   string
}

// withDefaults fills zero values with the shipped defaults.
func (c Config) withDefaults() Config {
	if c.Device == "" {
		c.Device = models.DeviceFull
	}
	if c.MinBucketSeconds <= 0 {
		c.MinBucketSeconds = transcript.DefaultMinBucketSeconds
	}
	if c.ChunkHeadingThreshold <= 0 {
		c.ChunkHeadingThreshold = 3
	}
	if c.LinkTemplate == "" {
		c.LinkTemplate = DefaultLinkTemplate
	}
	if c.SummarySystemPrompt == "" {
		c.SummarySystemPrompt = DefaultSummarySystemPrompt
	}
	if c.LinkingSystemPrompt == "" {
		c.LinkingSystemPrompt = DefaultLinkingSystemPrompt
	}
	return c
}

// Report aggregates a linking run's outcome for user-facing messaging
// ("added N links out of M sections").
type Report struct {
	SectionsTotal int `json:"sections_total"`
	ChunksTotal   int `json:"chunks_total"`
	ChunksFailed  int `json:"chunks_failed"`
	LinksAdded    int `json:"links_added"`
}

// Progress is called after each chunk completes (done out of total).
type Progress func(done, total int)

// Runner executes the two generative passes. Chunks are processed strictly
// sequentially, one backend call in flight at a time; output order always
// matches input order.
type Runner struct {
	backend  llm.Backend
	est      *limits.Estimator
	orch     *Orchestrator
	cfg      Config
	logger   *slog.Logger
	progress Progress
}

// NewRunner creates a pipeline runner.
func NewRunner(backend llm.Backend, est *limits.Estimator, cfg Config, logger *slog.Logger, progress Progress) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		backend:  backend,
		est:      est,
		orch:     NewOrchestrator(backend, logger),
		cfg:      cfg.withDefaults(),
		logger:   logger,
		progress: progress,
	}
}

// Summarize runs the first pass: bucket the transcript, drive a single
// backend call, and assemble a complete note with the canonical annotated
// transcript in the metadata block.
func (r *Runner) Summarize(ctx context.Context, t models.Transcript) (models.Document, error) {
	annotated := transcript.FormatSegments(t.Segments, r.cfg.MinBucketSeconds)
	budget := r.est.Budget(r.backend.Provider(), r.backend.Model(), models.PassFirst, r.cfg.Device)

	res := r.orch.Run(ctx, r.cfg.SummarySystemPrompt, summaryUserPrompt(t.Title, annotated), r.cfg.Temperature, budget)
	if !res.OK {
		return models.Document{}, fmt.Errorf("pipeline: first pass failed: %s", res.Reason)
	}

	body := res.Text
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	meta := document.BuildMetadataBlock(t.Title, t.VideoID, t.Source, time.Now(), annotated)
	return models.Document{MetadataBlock: meta, Body: body}, nil
}

// InsertLinks runs the linking pass over doc and returns the enriched
// document plus a report. Total failure (no sections, or every sent chunk
// failing) returns an error and the caller must leave the stored note
// untouched.
func (r *Runner) InsertLinks(ctx context.Context, doc models.Document) (models.Document, *Report, error) {
	videoID := document.VideoID(doc)
	annotated := document.AnnotatedTranscript(doc)
	sections := document.CountHeadings(doc.Body)
	if sections == 0 {
		return models.Document{}, nil, ErrNoSections
	}

	budget := r.est.Budget(r.backend.Provider(), r.backend.Model(), models.PassLinking, r.cfg.Device)
	chunks := r.split(doc.Body, sections, budget)

	results := make([]string, len(chunks))
	sent, failed := 0, 0

	for i, ch := range chunks {
		// Cancellation is checked between chunks; an in-flight call is
		// bounded by its own request context.
		if err := ctx.Err(); err != nil {
			return models.Document{}, nil, err
		}

		if !ch.HasHeading {
			results[i] = ch.Text
			continue
		}
		sent++

		res := r.orch.Run(ctx, r.cfg.LinkingSystemPrompt, linkingUserPrompt(ch.Text, annotated), r.cfg.Temperature, budget)
		if !res.OK {
			r.logger.Warn("chunk failed, keeping original text",
				slog.Int("chunk", ch.Index), slog.String("reason", res.Reason))
			results[i] = ch.Text
			failed++
			r.report(i+1, len(chunks))
			continue
		}

		if v := Validate(res.Text, ch.Text, true, videoID); !v.Accepted {
			r.logger.Warn("chunk output rejected, keeping original text",
				slog.Int("chunk", ch.Index), slog.String("reason", v.Reason))
			results[i] = ch.Text
			failed++
			r.report(i+1, len(chunks))
			continue
		}

		results[i] = matchTrailingNewline(res.Text, ch.Text)
		r.report(i+1, len(chunks))
	}

	if sent > 0 && failed == sent {
		return models.Document{}, nil, ErrAllChunksFailed
	}

	joined := strings.Join(results, "")
	final := Reconstruct(doc.MetadataBlock, results, videoID, r.cfg.LinkTemplate)

	return final, &Report{
		SectionsTotal: sections,
		ChunksTotal:   len(chunks),
		ChunksFailed:  failed,
		LinksAdded:    linksAdded(doc.Body, joined),
	}, nil
}

// split decides between whole-document processing and heading-bounded
// chunking. Chunking is engaged only past the heading threshold and when
// the body does not already fit the budget.
func (r *Runner) split(body string, sections int, budget models.TokenBudget) []models.Chunk {
	if sections > r.cfg.ChunkHeadingThreshold && chunker.EstimateTokens(body) > budget.Tokens {
		return chunker.Split(body, budget)
	}
	return []models.Chunk{{Index: 0, Text: body, HasHeading: true}}
}

func (r *Runner) report(done, total int) {
	if r.progress != nil {
		r.progress(done, total)
	}
}

// linksAdded counts the marker insertions the pass contributed.
func linksAdded(before, after string) int {
	n := transcript.CountMarkers(after) - transcript.CountMarkers(before)
	if n < 0 {
		return 0
	}
	return n
}

// matchTrailingNewline keeps chunk joins seamless: if the original chunk
// ended with a newline, the accepted replacement must too.
func matchTrailingNewline(candidate, original string) string {
	if strings.HasSuffix(original, "\n") && !strings.HasSuffix(candidate, "\n") {
		return candidate + "\n"
	}
	return candidate
}
