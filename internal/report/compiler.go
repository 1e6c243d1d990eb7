// Package report assembles summary chunks and timed segments into the final
// human-readable report and renders it into downloadable formats.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// UnknownSpeaker labels segments that carry no speaker
const UnknownSpeaker = "Speaker"

const (
	summaryHeading    = "# Summary"
	transcriptHeading = "# Transcript"
)

// Compile merges chunk summaries, in index order, with an optional timed
// transcript section. Diarized segments are preferred; when diarization was
// skipped the transcription segments are listed under the placeholder label.
func Compile(chunks []types.SummaryChunk, diarization *types.DiarizationResult, timing *types.TranscriptionResult) string {
	ordered := make([]types.SummaryChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var b strings.Builder
	b.WriteString(summaryHeading)
	b.WriteString("\n\n")
	for i, c := range ordered {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(c.Text))
	}
	b.WriteString("\n")

	segments := Segments(diarization, timing)
	if len(segments) == 0 {
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(transcriptHeading)
	b.WriteString("\n\n")
	for _, seg := range segments {
		b.WriteString(FormatSegment(seg))
		b.WriteString("\n")
	}
	return b.String()
}

// Segments picks the segment list for the transcript section, sorted by start.
func Segments(diarization *types.DiarizationResult, timing *types.TranscriptionResult) []types.Segment {
	var src []types.Segment
	switch {
	case diarization != nil && len(diarization.Segments) > 0:
		src = diarization.Segments
	case timing != nil:
		src = timing.Segments
	}
	if len(src) == 0 {
		return nil
	}

	out := make([]types.Segment, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		if strings.TrimSpace(out[i].Speaker) == "" {
			out[i].Speaker = UnknownSpeaker
		}
	}
	return out
}

// FormatSegment renders one line of the transcript section
func FormatSegment(seg types.Segment) string {
	speaker := seg.Speaker
	if strings.TrimSpace(speaker) == "" {
		speaker = UnknownSpeaker
	}
	return fmt.Sprintf("[%s–%s] %s: %s",
		FormatTimestamp(seg.Start), FormatTimestamp(seg.End), speaker, strings.TrimSpace(seg.Text))
}

// FormatTimestamp renders seconds as MM:SS. Minutes are unbounded and
// sub-second remainders are truncated.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
