// Package collaborator defines the narrow interfaces through which the
// pipeline consumes external engines: speech-to-text, LLM enrichment,
// clip segmentation, and video rendering. None are implemented here —
// the core only depends on these signatures, matching
// core.ProgressReporter's closure-based progress callback in place of
// a "progress_cb" parameter, and context.Context in place of an
// explicit cancel token.
package collaborator

import "context"

// ProgressFunc reports fractional progress (0.0-1.0) and a status message.
type ProgressFunc func(fraction float64, message string)

// Word is one word-level timing entry in a Transcript.
type Word struct {
	Start float64
	End   float64
	Token string
}

// Transcript is the output of a Transcriber.
type Transcript struct {
	Text       string
	Words      []Word
	Language   string
	Confidence float64
}

// Transcriber converts an audio track into a Transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, lang string, progress ProgressFunc) (Transcript, error)
}

// Enrichment is the output of an Enricher.
type Enrichment struct {
	ShowName      string
	HostName      string
	EpisodeNumber int
	Summary       string
	Takeaways     []string
	Topics        []string
	Tags          []string
}

// Enricher derives structured metadata and a narrative summary from a
// transcript, optionally informed by contextual hints.
type Enricher interface {
	Enrich(ctx context.Context, text string, context map[string]any, progress ProgressFunc) (Enrichment, error)
}

// ClipConfig bounds clip candidate discovery.
type ClipConfig struct {
	MaxClips    int
	MinDuration float64
	MaxDuration float64
	Threshold   float64
}

// ClipCandidate is one discovered clip candidate.
type ClipCandidate struct {
	StartMs  int64
	EndMs    int64
	Score    float64
	Title    string
	Caption  string
	Hashtags []string
}

// ClipSegmenter discovers short-form clip candidates within a transcript.
type ClipSegmenter interface {
	DiscoverClips(ctx context.Context, transcript Transcript, cfg ClipConfig, progress ProgressFunc) ([]ClipCandidate, error)
}

// AspectRatio is a render target aspect ratio.
type AspectRatio string

// AssetVariant is a rendering style applied to an output file.
type AssetVariant string

// RenderRequest describes one rendering job for the Encoder.
type RenderRequest struct {
	SourcePath  string
	StartMs     int64
	EndMs       int64
	Variant     AssetVariant
	AspectRatio AspectRatio
	OutputPath  string
}

// Encoder renders a source video (or a sub-range of one) to an output
// file in the requested variant and aspect ratio.
type Encoder interface {
	Render(ctx context.Context, req RenderRequest, progress ProgressFunc) error
}

// Prober extracts container-level metadata during the prep stage
// (duration, codec) without decoding frame data, analogous to an
// ffprobe-like interface.
type Prober interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
}

// ProbeResult is the output of a Prober.
type ProbeResult struct {
	DurationSeconds int
	FileSize        int64
}
