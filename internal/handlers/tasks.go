package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/queue"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/report"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/transcription"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Uploader persists submitted media for a task
type Uploader interface {
	SaveUpload(taskID, name string, r io.Reader) (string, error)
}

// Submitter hands a task id to the worker pool
type Submitter interface {
	Submit(taskID string) error
}

// TaskHandler serves task creation and the task read endpoints
type TaskHandler struct {
	store     storage.TaskStore
	uploads   Uploader
	pool      Submitter
	maxSizeMB int
	log       logrus.FieldLogger

	// Drive imports
	httpClient    *http.Client
	driveDownload string

	now    func() time.Time
	remove func(string) error
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(store storage.TaskStore, uploads Uploader, pool Submitter, maxSizeMB int, log logrus.FieldLogger) *TaskHandler {
	return &TaskHandler{
		store:         store,
		uploads:       uploads,
		pool:          pool,
		maxSizeMB:     maxSizeMB,
		log:           log,
		httpClient:    &http.Client{Timeout: 30 * time.Minute},
		driveDownload: driveDownloadURL,
		now:           time.Now,
		remove:        os.Remove,
	}
}

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

// storeError maps task store failures onto HTTP responses
func (h *TaskHandler) storeError(c *fiber.Ctx, id string, err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Task not found")
	case errors.Is(err, types.ErrCorruptState):
		h.log.WithField("task_id", id).WithError(err).Error("Task record is corrupt")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_CORRUPT_STATE", "Task record is corrupt")
	default:
		h.log.WithField("task_id", id).WithError(err).Error("Task store failure")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_STORE", "Task store unavailable")
	}
}

// tooLarge reports whether size exceeds the configured upload limit
func (h *TaskHandler) tooLarge(size int64) bool {
	return h.maxSizeMB > 0 && size > h.maxBytes()
}

func (h *TaskHandler) maxBytes() int64 {
	return int64(h.maxSizeMB) * 1024 * 1024
}

// parseOptions reads the optional batch_size and language form fields
func parseOptions(c *fiber.Ctx) (types.Options, error) {
	var opts types.Options
	if v := strings.TrimSpace(c.FormValue("batch_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("batch_size must be a positive integer, got %q", v)
		}
		opts.BatchSize = n
	}
	opts.Language = strings.TrimSpace(c.FormValue("language"))
	return opts, nil
}

// Create stores the uploaded media, records a pending task and queues it
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_FILE", "No file uploaded")
	}

	if h.tooLarge(file.Size) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE",
			fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB))
	}
	if !transcription.ValidateAudioFormat(file.Filename) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT", "Unsupported audio format")
	}

	opts, err := parseOptions(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_OPTIONS", err.Error())
	}

	src, err := file.Open()
	if err != nil {
		h.log.WithError(err).Error("Failed to open uploaded file")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}
	defer src.Close()

	return h.createTask(c, file.Filename, file.Size, src, opts)
}

// createTask saves the media under a fresh task id, records the pending task
// and queues it. A task the pool rejects is marked failed.
func (h *TaskHandler) createTask(c *fiber.Ctx, name string, size int64, src io.Reader, opts types.Options) error {
	taskID := uuid.NewString()
	log := h.log.WithField("task_id", taskID)

	path, err := h.uploads.SaveUpload(taskID, name, src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE",
				fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB))
		}
		log.WithError(err).Error("Failed to save uploaded file")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}

	task := types.NewTask(taskID, path, opts, h.now())
	if err := h.store.SaveTask(c.UserContext(), task); err != nil {
		h.discard(log, path)
		return h.storeError(c, taskID, err)
	}

	if err := h.pool.Submit(taskID); err != nil {
		h.reject(c.UserContext(), log, taskID, path)
		if errors.Is(err, queue.ErrQueueFull) {
			log.Warn("Queue full, task rejected")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "Too many tasks in progress, try again later",
				"code":    "ERR_QUEUE_FULL",
				"task_id": taskID,
			})
		}
		log.WithError(err).Error("Failed to queue task")
		return errorJSON(c, fiber.StatusServiceUnavailable, "ERR_UNAVAILABLE", "Server is not accepting tasks")
	}

	log.WithFields(logrus.Fields{
		"file":       name,
		"size":       size,
		"batch_size": task.Options.BatchSize,
		"language":   task.Options.Language,
	}).Info("Task created")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id": taskID,
		"status":  task.Status,
	})
}

// reject marks a task the pool refused as failed and drops its media
func (h *TaskHandler) reject(ctx context.Context, log logrus.FieldLogger, taskID, path string) {
	if err := h.store.UpdateStatus(ctx, taskID, types.StatusFailed); err != nil {
		log.WithError(err).Warn("Failed to mark rejected task as failed")
	}
	h.discard(log, path)
}

func (h *TaskHandler) discard(log logrus.FieldLogger, path string) {
	if err := h.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to remove uploaded media")
	}
}

// List returns the most recent tasks
func (h *TaskHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_LIMIT",
			fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
	}

	tasks, err := h.store.ListTasks(c.UserContext(), limit)
	if err != nil {
		return h.storeError(c, "", err)
	}
	if tasks == nil {
		tasks = []*types.Task{}
	}
	return c.JSON(tasks)
}

// Status returns the current lifecycle state of one task
func (h *TaskHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	task, err := h.store.GetTask(c.UserContext(), id)
	if err != nil {
		return h.storeError(c, id, err)
	}
	return c.JSON(fiber.Map{
		"task_id":    task.ID,
		"status":     task.Status,
		"updated_at": task.UpdatedAt,
	})
}

// Progress returns how far the pipeline has advanced for one task
func (h *TaskHandler) Progress(c *fiber.Ctx) error {
	id := c.Params("id")
	p, err := pipeline.Progress(c.UserContext(), h.store, id)
	if err != nil {
		return h.storeError(c, id, err)
	}
	return c.JSON(p)
}

// Report returns the final report as text, html or an xlsx workbook. Only
// completed tasks have one.
func (h *TaskHandler) Report(c *fiber.Ctx) error {
	id := c.Params("id")
	ctx := c.UserContext()

	format := strings.ToLower(c.Query("format", "text"))
	switch format {
	case "text", "html", "xlsx":
	default:
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT",
			fmt.Sprintf("unknown report format %q", format))
	}

	task, err := h.store.GetTask(ctx, id)
	if err != nil {
		return h.storeError(c, id, err)
	}
	if task.Status != types.StatusCompleted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "Report is not available",
			"code":   "ERR_NOT_READY",
			"status": task.Status,
		})
	}

	final, err := storage.GetReport(ctx, h.store, id)
	if err != nil {
		return h.storeError(c, id, err)
	}

	switch format {
	case "html":
		body, err := report.RenderHTML(final.Content)
		if err != nil {
			h.log.WithField("task_id", id).WithError(err).Error("Failed to render report")
			return errorJSON(c, fiber.StatusInternalServerError, "ERR_RENDER", "Failed to render report")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(body)
	case "xlsx":
		return h.workbook(c, id)
	default:
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(final.Content)
	}
}

func (h *TaskHandler) workbook(c *fiber.Ctx, id string) error {
	ctx := c.UserContext()

	chunks, err := h.store.ListChunks(ctx, id)
	if err != nil {
		return h.storeError(c, id, err)
	}
	timing, err := optional(storage.GetTranscription(ctx, h.store, id))
	if err != nil {
		return h.storeError(c, id, err)
	}
	diarization, err := optional(storage.GetDiarization(ctx, h.store, id))
	if err != nil {
		return h.storeError(c, id, err)
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, chunks, report.Segments(diarization, timing)); err != nil {
		h.log.WithField("task_id", id).WithError(err).Error("Failed to build workbook")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_RENDER", "Failed to render report")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Attachment(id + ".xlsx")
	return c.Send(buf.Bytes())
}

// optional turns a missing artifact into a nil value
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, types.ErrMissingArtifact) {
		return nil, nil
	}
	return v, err
}
