// Package models defines the domain types for Ansuz.
package models

// TranscriptSegment is a single time-coded fragment of a video transcript.
// Input ordering by StartSeconds is not guaranteed and must be re-established
// before bucketing.
type TranscriptSegment struct {
	StartSeconds float64 `json:"start"`
	Text         string  `json:"text"`
}

// TimeBucket aggregates transcript text over a contiguous time window.
// Buckets are monotonically increasing in StartSeconds and span at least the
// configured minimum duration, except possibly the final bucket.
type TimeBucket struct {
	StartSeconds int    `json:"start"`
	Text         string `json:"text"`
}

// Transcript is the parsed payload of an inbox transcript file or an API
// submission.
type Transcript struct {
	VideoID  string              `json:"video_id"`
	Title    string              `json:"title"`
	Source   string              `json:"source,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
}
