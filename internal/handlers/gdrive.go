package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/transcription"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

const driveDownloadURL = "https://drive.google.com/uc?export=download&id=%s"

var driveIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`), // https://drive.google.com/file/d/{ID}/view
	regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`),  // https://drive.google.com/open?id={ID}
	regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`), // bare ID
}

// ImportRequest asks for a task over a shared Google Drive file
type ImportRequest struct {
	URL       string `json:"url"`
	BatchSize int    `json:"batch_size"`
	Language  string `json:"language"`
}

// Import downloads a publicly shared Drive file and creates a task for it
func (h *TaskHandler) Import(c *fiber.Ctx) error {
	var req ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}
	if strings.TrimSpace(req.URL) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_URL", "URL is required")
	}
	fileID := extractDriveFileID(strings.TrimSpace(req.URL))
	if fileID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_URL", "Invalid Google Drive URL")
	}
	if req.BatchSize < 0 {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_OPTIONS", "batch_size must be positive")
	}

	log := h.log.WithField("drive_file", fileID)
	log.Info("Downloading from Google Drive")

	dl, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, fmt.Sprintf(h.driveDownload, fileID), nil)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_URL", "Invalid Google Drive URL")
	}
	resp, err := h.httpClient.Do(dl)
	if err != nil {
		log.WithError(err).Error("Failed to download from Google Drive")
		return errorJSON(c, fiber.StatusBadGateway, "ERR_DOWNLOAD_FAILED", "Failed to download file from Google Drive")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("Drive file not accessible")
		return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_NOT_ACCESSIBLE",
			"File not accessible (may be private or doesn't exist)")
	}

	name := downloadName(resp.Header.Get(fiber.HeaderContentDisposition), fileID)
	if !transcription.ValidateAudioFormat(name) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT", "Unsupported audio format")
	}
	if h.tooLarge(resp.ContentLength) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE",
			fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB))
	}

	var body io.Reader = resp.Body
	if h.maxSizeMB > 0 {
		body = http.MaxBytesReader(nil, resp.Body, h.maxBytes())
	}
	opts := types.Options{BatchSize: req.BatchSize, Language: strings.TrimSpace(req.Language)}
	return h.createTask(c, name, resp.ContentLength, body, opts)
}

// extractDriveFileID extracts the file ID from the usual Drive URL shapes
func extractDriveFileID(url string) string {
	for _, re := range driveIDPatterns {
		if m := re.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// downloadName takes the file name Drive sends, falling back to <id>.mp3
func downloadName(disposition, fileID string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}
	return fileID + ".mp3"
}
