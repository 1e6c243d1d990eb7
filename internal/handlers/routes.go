package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/queue"
)

// PoolStats reports worker pool load
type PoolStats interface {
	Stats() queue.Stats
}

// StageLister reports the executor's stage table
type StageLister interface {
	Stages() []pipeline.StageInfo
}

// Health reports liveness together with queue load and the stage table
func Health(pool PoolStats, stages StageLister) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"workers": pool.Stats(),
			"stages":  stages.Stages(),
		})
	}
}

// RequestLogger logs one line per request
func RequestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		entry := log.WithFields(logrus.Fields{
			"method":  c.Method(),
			"path":    c.Path(),
			"status":  status,
			"latency": time.Since(start).Round(time.Microsecond).String(),
		})
		if status >= fiber.StatusInternalServerError {
			entry.Warn("Request failed")
		} else {
			entry.Debug("Request served")
		}
		return err
	}
}

// Register mounts the task API on app
func Register(app fiber.Router, tasks *TaskHandler, stream *StreamHandler, health fiber.Handler) {
	app.Get("/health", health)

	app.Post("/tasks", tasks.Create)
	app.Post("/tasks/import", tasks.Import)
	app.Get("/tasks", tasks.List)
	app.Get("/tasks/:id/status", tasks.Status)
	app.Get("/tasks/:id/progress", tasks.Progress)
	app.Get("/tasks/:id/report", tasks.Report)

	app.Get("/ws/tasks/:id", Upgrade, websocket.New(stream.Handle))
}
