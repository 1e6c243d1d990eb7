package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// Config selects the whisperx runtime and where sessions keep their files
type Config struct {
	Python      string
	FFmpeg      string
	Model       string
	Device      string
	ComputeType string
	HFToken     string
	WorkDir     string
	// MaxConcurrent bounds how many sessions hold a model at once
	MaxConcurrent int
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Gateway runs WhisperX through its command line interface. Work happens
// inside sessions; a session holds one model slot until Cleanup.
type Gateway struct {
	cfg    Config
	runner commandRunner
	slots  chan struct{}
	log    logrus.FieldLogger

	mkdirAll  func(path string, perm os.FileMode) error
	removeAll func(path string) error
	readFile  func(name string) ([]byte, error)
}

// NewGateway creates a gateway that shells out to python and ffmpeg
func NewGateway(cfg Config, log logrus.FieldLogger) *Gateway {
	return newGateway(cfg, &execRunner{}, log)
}

func newGateway(cfg Config, runner commandRunner, log logrus.FieldLogger) *Gateway {
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.Model == "" {
		cfg.Model = "large-v2"
	}
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	if cfg.ComputeType == "" {
		cfg.ComputeType = "int8"
		if cfg.Device == "cuda" {
			cfg.ComputeType = "float16"
		}
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	log.WithFields(logrus.Fields{
		"model":  cfg.Model,
		"device": cfg.Device,
		"slots":  cfg.MaxConcurrent,
	}).Info("Initializing WhisperX gateway")

	return &Gateway{
		cfg:       cfg,
		runner:    runner,
		slots:     make(chan struct{}, cfg.MaxConcurrent),
		log:       log,
		mkdirAll:  os.MkdirAll,
		removeAll: os.RemoveAll,
		readFile:  os.ReadFile,
	}
}

// Session is one task's scoped hold on the transcription runtime
type Session struct {
	g      *Gateway
	taskID string
	dir    string
	wav    string
	log    logrus.FieldLogger

	once       sync.Once
	cleanupErr error
}

// Acquire waits for a free model slot and prepares a private work directory.
// The caller must Cleanup the session on every exit path.
func (g *Gateway) Acquire(ctx context.Context, taskID string) (*Session, error) {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	dir := filepath.Join(g.cfg.WorkDir, "session_"+uuid.New().String())
	if err := g.mkdirAll(dir, 0755); err != nil {
		<-g.slots
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &Session{
		g:      g,
		taskID: taskID,
		dir:    dir,
		log:    g.log.WithField("task_id", taskID),
	}, nil
}

// Cleanup removes the session's files and frees its model slot. It is safe
// to call more than once.
func (s *Session) Cleanup() error {
	s.once.Do(func() {
		defer func() { <-s.g.slots }()
		if err := s.g.removeAll(s.dir); err != nil {
			s.cleanupErr = fmt.Errorf("failed to remove %s: %w", s.dir, err)
			return
		}
		s.log.Debug("Transcription resources released")
	})
	return s.cleanupErr
}

// Transcribe runs whisperx over the audio and returns aligned segments
func (s *Session) Transcribe(ctx context.Context, audioPath string, batchSize int, language string) (*types.TranscriptionResult, error) {
	wav, err := s.normalized(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrTranscription, err)
	}
	if batchSize <= 0 {
		batchSize = types.DefaultBatchSize
	}

	outDir := filepath.Join(s.dir, "transcribe")
	args := s.g.whisperArgs(wav, outDir, batchSize, language)

	s.log.WithField("model", s.g.cfg.Model).Info("Transcribing with WhisperX")
	out, err := s.g.runWhisper(ctx, wav, outDir, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrTranscription, err)
	}

	segments := make([]types.Segment, 0, len(out.Segments))
	texts := make([]string, 0, len(out.Segments))
	for _, seg := range out.Segments {
		text := strings.TrimSpace(seg.Text)
		segments = append(segments, types.Segment{Start: seg.Start, End: seg.End, Text: text})
		if text != "" {
			texts = append(texts, text)
		}
	}

	result := &types.TranscriptionResult{
		Text:     strings.Join(texts, " "),
		Language: out.Language,
		Segments: segments,
	}
	if result.Language == "" {
		result.Language = language
	}

	s.log.WithFields(logrus.Fields{
		"segments": len(segments),
		"duration": result.Duration(),
		"language": result.Language,
	}).Info("Transcription completed")
	return result, nil
}

func (g *Gateway) whisperArgs(wav, outDir string, batchSize int, language string) []string {
	args := []string{"-m", "whisperx", wav,
		"--model", g.cfg.Model,
		"--device", g.cfg.Device,
		"--compute_type", g.cfg.ComputeType,
		"--batch_size", strconv.Itoa(batchSize),
		"--output_dir", outDir,
		"--output_format", "json",
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	return args
}

// whisperxOutput matches the JSON file whisperx writes per input
type whisperxOutput struct {
	Language string            `json:"language"`
	Segments []whisperxSegment `json:"segments"`
}

type whisperxSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

func (g *Gateway) runWhisper(ctx context.Context, wav, outDir string, args []string) (*whisperxOutput, error) {
	if err := g.mkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	res, err := g.runner.Run(ctx, g.cfg.Python, args...)
	if err != nil {
		return nil, fmt.Errorf("whisperx exited with code %d: %v: %s", res.ExitCode, err, tail(res.Stderr))
	}

	baseName := strings.TrimSuffix(filepath.Base(wav), filepath.Ext(wav))
	data, err := g.readFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisperx output: %w", err)
	}

	var out whisperxOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisperx JSON: %w", err)
	}
	return &out, nil
}

// tail keeps the end of noisy tool output for error messages
func tail(s string) string {
	const limit = 500
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}
