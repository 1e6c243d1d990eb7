package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

const defaultPollInterval = time.Second

// StreamHandler pushes task progress over a WebSocket until the task ends
type StreamHandler struct {
	store    storage.TaskStore
	interval time.Duration
	log      logrus.FieldLogger
}

// NewStreamHandler creates a new stream handler polling the store every interval
func NewStreamHandler(store storage.TaskStore, interval time.Duration, log logrus.FieldLogger) *StreamHandler {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &StreamHandler{
		store:    store,
		interval: interval,
		log:      log,
	}
}

// Upgrade rejects plain HTTP requests on the stream route
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle processes WebSocket connections
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	taskID := c.Params("id")
	log := h.log.WithField("task_id", taskID)
	log.Debug("Status stream opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the client never sends anything; a read error means it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err := h.watch(ctx, taskID, func(p *types.Progress) error {
		return c.WriteJSON(p)
	})
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, types.ErrNotFound):
		c.WriteJSON(fiber.Map{"error": "Task not found", "code": "ERR_NOT_FOUND"})
	default:
		log.WithError(err).Warn("Status stream ended")
		c.WriteJSON(fiber.Map{"error": "Status unavailable", "code": "ERR_STORE"})
	}
	log.Debug("Status stream closed")
}

// watch sends a progress snapshot whenever it changes and returns once the
// task reaches a terminal status.
func (h *StreamHandler) watch(ctx context.Context, taskID string, send func(*types.Progress) error) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last *types.Progress
	for {
		p, err := pipeline.Progress(ctx, h.store, taskID)
		if err != nil {
			return err
		}
		if last == nil || changed(last, p) {
			if err := send(p); err != nil {
				return err
			}
			last = p
		}
		if p.Status.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func changed(a, b *types.Progress) bool {
	return a.Status != b.Status ||
		!a.UpdatedAt.Equal(b.UpdatedAt) ||
		a.TranscriptionCompleted != b.TranscriptionCompleted ||
		a.Diarized != b.Diarized ||
		a.SummaryChunks != b.SummaryChunks
}
