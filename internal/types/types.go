package types

import "time"

// Default option values applied when a task is created without them
const (
	DefaultBatchSize    = 16
	DefaultMaxChunkSize = 5000
)

// Options are fixed at task creation and never mutated afterwards
type Options struct {
	BatchSize int    `json:"batch_size"`
	Language  string `json:"language,omitempty"`
}

// Task is one unit of work from submitted media to final report
type Task struct {
	ID         string    `json:"task_id"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	SourcePath string    `json:"source_path"`
	Options    Options   `json:"options"`
}

// NewTask creates a pending task for the media stored at sourcePath
func NewTask(id, sourcePath string, opts Options, now time.Time) *Task {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Task{
		ID:         id,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		SourcePath: sourcePath,
		Options:    opts,
	}
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// TranscriptionResult represents the output of the transcription stage
type TranscriptionResult struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Duration returns the end time of the last segment
func (r *TranscriptionResult) Duration() float64 {
	if r == nil || len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].End
}

// DiarizationResult carries the transcript segments with speakers attached
type DiarizationResult struct {
	Segments []Segment `json:"segments"`
}

// SummaryChunk is the summary of one transcript chunk
type SummaryChunk struct {
	TaskID      string    `json:"task_id"`
	Index       int       `json:"index"`
	Text        string    `json:"text"`
	CompletedAt time.Time `json:"completed_at"`
}

// FinalReport is the compiled human-readable report for a task
type FinalReport struct {
	TaskID      string    `json:"task_id"`
	Content     string    `json:"content"`
	CompletedAt time.Time `json:"completed_at"`
}

// Progress summarizes how far a task has advanced
type Progress struct {
	TaskID                 string     `json:"task_id"`
	Status                 Status     `json:"status"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	TranscriptionCompleted bool       `json:"transcription_completed"`
	Diarized               bool       `json:"diarized"`
	SummaryChunks          int        `json:"summary_chunks_count,omitempty"`
	ReportCompletedAt      *time.Time `json:"final_report_completed,omitempty"`
}
