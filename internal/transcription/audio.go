package transcription

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// SupportedFormats lists the media extensions accepted for upload
var SupportedFormats = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma", ".mp4"}

// normalized converts the input once per session to 16kHz mono WAV
func (s *Session) normalized(ctx context.Context, inputPath string) (string, error) {
	if s.wav != "" {
		return s.wav, nil
	}

	outputPath := filepath.Join(s.dir, "normalized_"+s.taskID+".wav")
	res, err := s.g.runner.Run(ctx, s.g.cfg.FFmpeg,
		"-i", inputPath,
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y", // Overwrite output
		outputPath,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %v: %s", err, tail(res.Stderr))
	}

	s.wav = outputPath
	return outputPath, nil
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
