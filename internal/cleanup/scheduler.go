package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler periodically removes media files that no task deleted, such as
// uploads of tasks that failed or were interrupted.
type Scheduler struct {
	dir      string
	interval time.Duration
	maxAge   time.Duration
	log      logrus.FieldLogger

	now    func() time.Time
	remove func(string) error

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Result summarizes one sweep
type Result struct {
	Deleted int
	Freed   int64
}

// NewScheduler creates a new cleanup scheduler over dir
func NewScheduler(dir string, intervalMinutes, maxAgeHours int, log logrus.FieldLogger) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	return &Scheduler{
		dir:      dir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		log:      log.WithField("component", "cleanup"),
		now:      time.Now,
		remove:   os.Remove,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one every interval until Stop
func (s *Scheduler) Start() {
	s.log.Info("Running initial media cleanup")
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()

	s.log.WithFields(logrus.Fields{
		"dir":      s.dir,
		"interval": s.interval.String(),
		"max_age":  s.maxAge.String(),
	}).Info("Cleanup scheduler started")
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.log.Info("Cleanup scheduler stopped")
	})
}

// Sweep removes regular files under dir older than the max age
func (s *Scheduler) Sweep() Result {
	now := s.now()
	var res Result

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			s.log.WithError(err).WithField("path", path).Debug("Skipping unreadable path")
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		if err := s.remove(path); err != nil {
			s.log.WithError(err).WithField("file", filepath.Base(path)).Warn("Failed to delete old file")
			return nil
		}
		res.Deleted++
		res.Freed += info.Size()
		s.log.WithFields(logrus.Fields{
			"file":    filepath.Base(path),
			"age":     age.Round(time.Hour).String(),
			"size_kb": info.Size() / 1024,
		}).Info("Deleted old media file")
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("Error during cleanup")
	}

	if res.Deleted > 0 {
		s.log.WithFields(logrus.Fields{
			"deleted":  res.Deleted,
			"freed_mb": float64(res.Freed) / (1024 * 1024),
		}).Info("Cleanup complete")
	}
	return res
}

// EnsureDir creates dir if it does not exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
