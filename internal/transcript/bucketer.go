// Package transcript converts time-coded transcript segments into the
// canonical annotated-transcript form used throughout the pipeline.
package transcript

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

// DefaultMinBucketSeconds is the minimum time span of a bucket.
const DefaultMinBucketSeconds = 60

// Unavailable is emitted when there are no usable segments. An empty
// transcript must stay visibly distinguishable from extraction failure, so
// this is never the empty string.
const Unavailable = "(unable to format transcript: no usable segments)"

// markerRe matches the internal time marker wire format.
var markerRe = regexp.MustCompile(`marker:(\d+)`)

// colonEscape replaces literal colons inside bucket text so the
// line-oriented HH:MM:SS / marker:N layout parses unambiguously.
const colonEscape = "&#58;"

// Marker renders the wire form of a time marker for n seconds.
func Marker(n int) string {
	return "marker:" + strconv.Itoa(n)
}

// MarkerSeconds extracts every marker's second value from text, in order.
func MarkerSeconds(text string) []int {
	var out []int
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// CountMarkers returns the number of marker tokens in text.
func CountMarkers(text string) int {
	return len(markerRe.FindAllStringIndex(text, -1))
}

// ReplaceMarkers rewrites every marker token through fn.
func ReplaceMarkers(text string, fn func(seconds int) string) string {
	return markerRe.ReplaceAllStringFunc(text, func(tok string) string {
		n, err := strconv.Atoi(strings.TrimPrefix(tok, "marker:"))
		if err != nil {
			return tok
		}
		return fn(n)
	})
}

// Bucket groups segments into time windows of at least minSeconds.
// Segments are sorted by start time (stable on ties) and empty segments are
// skipped. A single segment yields a single bucket regardless of duration.
func Bucket(segments []models.TranscriptSegment, minSeconds int) []models.TimeBucket {
	if minSeconds <= 0 {
		minSeconds = DefaultMinBucketSeconds
	}

	sorted := make([]models.TranscriptSegment, 0, len(segments))
	for _, s := range segments {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		sorted = append(sorted, s)
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartSeconds < sorted[j].StartSeconds
	})

	var out []models.TimeBucket
	cur := models.TimeBucket{StartSeconds: int(sorted[0].StartSeconds)}
	var parts []string

	flush := func() {
		cur.Text = strings.Join(parts, " ")
		out = append(out, cur)
		parts = parts[:0]
	}

	for _, s := range sorted {
		if len(parts) > 0 && int(s.StartSeconds)-cur.StartSeconds >= minSeconds {
			flush()
			cur = models.TimeBucket{StartSeconds: int(s.StartSeconds)}
		}
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	flush()

	return out
}

// Format serializes buckets into the canonical annotated transcript.
// Each line is "HH:MM:SS marker:N text". Marker tokens already present in
// segment text are relocated to the end of the line instead of being
// escaped or duplicated; remaining literal colons in the text are escaped.
func Format(buckets []models.TimeBucket) string {
	if len(buckets) == 0 {
		return Unavailable
	}
	var b strings.Builder
	for i, bk := range buckets {
		if i > 0 {
			b.WriteByte('\n')
		}
		text, relocated := extractMarkers(bk.Text)
		text = strings.ReplaceAll(text, ":", colonEscape)
		b.WriteString(Clock(bk.StartSeconds))
		b.WriteByte(' ')
		b.WriteString(Marker(bk.StartSeconds))
		b.WriteByte(' ')
		b.WriteString(text)
		for _, tok := range relocated {
			b.WriteByte(' ')
			b.WriteString(tok)
		}
	}
	return b.String()
}

// FormatSegments buckets and serializes in one step.
func FormatSegments(segments []models.TranscriptSegment, minSeconds int) string {
	return Format(Bucket(segments, minSeconds))
}

// Parse reads an annotated transcript back into buckets. Malformed lines are
// skipped; the Unavailable placeholder parses to nil.
func Parse(annotated string) []models.TimeBucket {
	if annotated == "" || annotated == Unavailable {
		return nil
	}
	var out []models.TimeBucket
	for _, line := range strings.Split(annotated, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
		if len(fields) < 2 {
			continue
		}
		m := markerRe.FindStringSubmatch(fields[1])
		if m == nil || markerRe.FindString(fields[1]) != fields[1] {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		text := ""
		if len(fields) == 3 {
			text = strings.ReplaceAll(fields[2], colonEscape, ":")
		}
		out = append(out, models.TimeBucket{StartSeconds: n, Text: text})
	}
	return out
}

// extractMarkers removes marker tokens embedded in text and returns them
// separately, deduplicated, preserving first-seen order.
func extractMarkers(text string) (string, []string) {
	tokens := markerRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return text, nil
	}
	seen := make(map[string]struct{}, len(tokens))
	var relocated []string
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		relocated = append(relocated, tok)
	}
	cleaned := markerRe.ReplaceAllString(text, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return cleaned, relocated
}

// Clock renders whole seconds as zero-padded HH:MM:SS. It is also used for
// link labels in the reconstructed document.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
