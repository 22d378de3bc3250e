// Package collaboratortest provides deterministic stub implementations
// of the collaborator interfaces for pipeline stage and scenario tests
// (S1-S6). None of them touch the network or disk beyond what the
// caller passes in.
package collaboratortest

import (
	"context"
	"fmt"

	"github.com/episoded/episoded/internal/collaborator"
)

// Transcriber returns a fixed Transcript, invoking progress at 0, 0.5
// and 1.0 unless FailAfterCalls is set, in which case it returns Err on
// the given progress callback invocation (1-indexed) to simulate S3.
type Transcriber struct {
	Result         collaborator.Transcript
	FailAfterCalls int
	Err            error
}

// NewTranscriber returns a Transcriber stub with a plausible fixed result.
func NewTranscriber() *Transcriber {
	return &Transcriber{
		Result: collaborator.Transcript{
			Text: "this is a stubbed transcript",
			Words: []collaborator.Word{
				{Start: 0, End: 0.5, Token: "this"},
				{Start: 0.5, End: 1.0, Token: "is"},
			},
			Language:   "en",
			Confidence: 0.95,
		},
	}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, lang string, progress collaborator.ProgressFunc) (collaborator.Transcript, error) {
	calls := 0
	steps := []float64{0, 0.5, 1.0}
	for _, f := range steps {
		calls++
		if ctx.Err() != nil {
			return collaborator.Transcript{}, ctx.Err()
		}
		if t.FailAfterCalls > 0 && calls >= t.FailAfterCalls {
			err := t.Err
			if err == nil {
				err = fmt.Errorf("stub transcriber failure")
			}
			return collaborator.Transcript{}, err
		}
		if progress != nil {
			progress(f, "transcribing")
		}
	}
	return t.Result, nil
}

// Enricher returns a fixed Enrichment.
type Enricher struct {
	Result collaborator.Enrichment
	Err    error
}

// NewEnricher returns an Enricher stub with a plausible fixed result.
func NewEnricher() *Enricher {
	return &Enricher{
		Result: collaborator.Enrichment{
			ShowName:      "ForumDailyNews",
			EpisodeNumber: 140,
			Summary:       "stubbed summary",
			Takeaways:     []string{"takeaway one"},
			Topics:        []string{"news"},
			Tags:          []string{"daily"},
		},
	}
}

func (e *Enricher) Enrich(ctx context.Context, text string, context map[string]any, progress collaborator.ProgressFunc) (collaborator.Enrichment, error) {
	if e.Err != nil {
		return collaborator.Enrichment{}, e.Err
	}
	if progress != nil {
		progress(1.0, "enriched")
	}
	return e.Result, nil
}

// ClipSegmenter returns a fixed set of clip candidates.
type ClipSegmenter struct {
	Result []collaborator.ClipCandidate
	Err    error
}

// NewClipSegmenter returns a ClipSegmenter stub with one plausible candidate.
func NewClipSegmenter() *ClipSegmenter {
	return &ClipSegmenter{
		Result: []collaborator.ClipCandidate{
			{StartMs: 1000, EndMs: 16000, Score: 0.8, Title: "stub clip"},
		},
	}
}

func (c *ClipSegmenter) DiscoverClips(ctx context.Context, transcript collaborator.Transcript, cfg collaborator.ClipConfig, progress collaborator.ProgressFunc) ([]collaborator.ClipCandidate, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if progress != nil {
		progress(1.0, "discovered")
	}
	return c.Result, nil
}

// Encoder records render requests and otherwise succeeds immediately.
type Encoder struct {
	Requests []collaborator.RenderRequest
	Err      error
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Render(ctx context.Context, req collaborator.RenderRequest, progress collaborator.ProgressFunc) error {
	e.Requests = append(e.Requests, req)
	if e.Err != nil {
		return e.Err
	}
	if progress != nil {
		progress(1.0, "rendered")
	}
	return nil
}

// Prober returns a fixed probe result.
type Prober struct {
	Result collaborator.ProbeResult
	Err    error
}

func NewProber() *Prober {
	return &Prober{Result: collaborator.ProbeResult{DurationSeconds: 600, FileSize: 1 << 20}}
}

func (p *Prober) Probe(ctx context.Context, path string) (collaborator.ProbeResult, error) {
	if p.Err != nil {
		return collaborator.ProbeResult{}, p.Err
	}
	return p.Result, nil
}
