package queue

import "time"

// Job is one queued request to run the pipeline for a task
type Job struct {
	TaskID     string
	EnqueuedAt time.Time
}

// NewJob creates a job stamped with the enqueue time
func NewJob(taskID string) *Job {
	return &Job{
		TaskID:     taskID,
		EnqueuedAt: time.Now(),
	}
}
