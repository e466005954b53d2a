// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/transcript"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("format_transcript",
		mcp.WithDescription("Convert raw transcript segments into the annotated time-bucketed form "+
			"(HH:MM:SS marker:N text). Useful for inspecting what the pipeline will feed a model."),
		mcp.WithString("segments", mcp.Required(),
			mcp.Description(`JSON array of segments: [{"start": 12.5, "text": "..."}]`)),
		mcp.WithString("min_bucket_seconds", mcp.Description("Minimum bucket duration in seconds (default 60)")),
	), s.formatTranscript)

	s.mcp.AddTool(mcp.NewTool("create_video_note",
		mcp.WithDescription("Run the summary pass over a video transcript and store the resulting "+
			"note in the vault. The note follows the video-note format; read it via the "+
			"get_note_contract tool or the ansuz://video-note-format resource."),
		mcp.WithString("transcript", mcp.Required(),
			mcp.Description(`Transcript JSON: {"video_id": "...", "title": "...", "segments": [{"start": 0, "text": "..."}]}`)),
	), s.createVideoNote)

	s.mcp.AddTool(mcp.NewTool("enrich_note",
		mcp.WithDescription("Run the linking pass over a stored note: section headings gain "+
			"timestamp links back into the source video. On failure the note is left unchanged."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. videos/talk.md)")),
	), s.enrichNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a vault note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. videos/talk.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded pipeline runs, newest first."),
		mcp.WithString("path", mcp.Description("Optional note path to filter by")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical video-note format contract."),
	), s.getNoteContract)

	// Resource: video-note format contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://video-note-format", "Video Note Format Contract",
			mcp.WithResourceDescription("Canonical video-note format produced and consumed by the pipeline."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) formatTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("segments")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var segments []models.TranscriptSegment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid segments JSON: %v", err)), nil
	}

	minSeconds := transcript.DefaultMinBucketSeconds
	if v, err := req.RequireString("min_bucket_seconds"); err == nil && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return mcp.NewToolResultError("min_bucket_seconds must be a positive integer"), nil
		}
		minSeconds = n
	}

	return mcp.NewToolResultText(transcript.FormatSegments(segments, minSeconds)), nil
}

func (s *Server) createVideoNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("transcript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var t models.Transcript
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid transcript JSON: %v", err)), nil
	}
	if t.VideoID == "" || len(t.Segments) == 0 {
		return mcp.NewToolResultError("transcript needs video_id and at least one segment"), nil
	}

	note, err := s.svc.CreateFromTranscript(ctx, t)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("note already exists: %s", noteservice.NotePath(t))), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.Path)), nil
}

func (s *Server) enrichNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, report, err := s.svc.EnrichNote(ctx, path, "")
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"enriched %s: added %d links across %d sections (%d of %d chunks failed)",
		path, report.LinksAdded, report.SectionsTotal, report.ChunksFailed, report.ChunksTotal)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if path, err := req.RequireString("path"); err == nil && path != "" {
		runs, err := s.svc.RunsForNote(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, _ := json.MarshalIndent(runs, "", "  ")
		return mcp.NewToolResultText(string(out)), nil
	}

	runs, _, err := s.svc.ListRuns(ctx, 50, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(runs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://video-note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
