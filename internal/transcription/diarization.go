package transcription

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

var errNoToken = errors.New("hugging face token not configured")

// Diarize runs whisperx with speaker diarization and attaches the detected
// speakers to the existing transcript segments. The transcript's text and
// timing are kept as they are.
func (s *Session) Diarize(ctx context.Context, audioPath string, transcript *types.TranscriptionResult) (*types.DiarizationResult, error) {
	if s.g.cfg.HFToken == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrDiarization, errNoToken)
	}
	if transcript == nil || len(transcript.Segments) == 0 {
		return nil, fmt.Errorf("%w: transcript has no segments", types.ErrDiarization)
	}

	wav, err := s.normalized(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDiarization, err)
	}

	outDir := filepath.Join(s.dir, "diarize")
	args := s.g.whisperArgs(wav, outDir, types.DefaultBatchSize, transcript.Language)
	args = append(args, "--diarize", "--hf_token", s.g.cfg.HFToken)

	s.log.Info("Starting diarization")
	out, err := s.g.runWhisper(ctx, wav, outDir, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDiarization, err)
	}

	labelled := make([]types.Segment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		if seg.Speaker != "" {
			labelled = append(labelled, types.Segment{Start: seg.Start, End: seg.End, Speaker: seg.Speaker})
		}
	}
	if len(labelled) == 0 {
		return nil, fmt.Errorf("%w: no speakers detected", types.ErrDiarization)
	}

	result := &types.DiarizationResult{Segments: AssignSpeakers(transcript.Segments, labelled)}
	s.log.WithField("segments", len(result.Segments)).Info("Diarization completed")
	return result, nil
}

// AssignSpeakers labels each transcript segment with the speaker whose turns
// overlap it the longest. Segments without any overlap stay unlabelled.
func AssignSpeakers(segments, turns []types.Segment) []types.Segment {
	out := make([]types.Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg

		overlap := make(map[string]float64)
		best, bestDur := "", 0.0
		for _, turn := range turns {
			d := min(seg.End, turn.End) - max(seg.Start, turn.Start)
			if d <= 0 {
				continue
			}
			overlap[turn.Speaker] += d
			if total := overlap[turn.Speaker]; total > bestDur || (total == bestDur && turn.Speaker < best) {
				best, bestDur = turn.Speaker, total
			}
		}
		if best != "" {
			out[i].Speaker = best
		}
	}
	return out
}
