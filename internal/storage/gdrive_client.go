package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient publishes final reports to Google Drive
type DriveClient struct {
	service    *drive.Service
	folderName string

	mu       sync.Mutex
	folderID string
}

// NewDriveClient creates a Drive client from an OAuth client credentials file
// and a previously authorized token file.
func NewDriveClient(ctx context.Context, credentialsFile, tokenFile, folderName string) (*DriveClient, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	// The server runs unattended, so the interactive consent flow is not
	// available here; the token must be provisioned up front.
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read drive token %s: %w", tokenFile, err)
	}

	return NewDriveClientWithOptions(ctx, folderName, option.WithHTTPClient(config.Client(ctx, tok)))
}

// NewDriveClientWithOptions builds the client on top of arbitrary API options
func NewDriveClientWithOptions(ctx context.Context, folderName string, opts ...option.ClientOption) (*DriveClient, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return &DriveClient{service: srv, folderName: folderName}, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token file holds no credentials")
	}
	return tok, nil
}

func (dc *DriveClient) Name() string {
	return "gdrive"
}

// Publish uploads the report as markdown into <folder>/YYYY/MM/DD and returns
// a shareable link.
func (dc *DriveClient) Publish(ctx context.Context, report *types.FinalReport) (string, error) {
	rootID, err := dc.rootFolder(ctx)
	if err != nil {
		return "", err
	}
	folderID, err := dc.ensureDateFolder(ctx, rootID, report)
	if err != nil {
		return "", err
	}

	file := &drive.File{
		Name:     sanitizeFilename(report.TaskID) + ".md",
		MimeType: "text/markdown",
		Parents:  []string{folderID},
	}
	created, err := dc.service.Files.Create(file).
		Media(strings.NewReader(report.Content)).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	if created.WebViewLink != "" {
		return created.WebViewLink, nil
	}
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}

// rootFolder finds or creates the configured top-level folder once
func (dc *DriveClient) rootFolder(ctx context.Context) (string, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.folderID != "" {
		return dc.folderID, nil
	}
	id, err := dc.findOrCreateFolder(ctx, dc.folderName, "")
	if err != nil {
		return "", fmt.Errorf("unable to resolve folder %q: %w", dc.folderName, err)
	}
	dc.folderID = id
	return id, nil
}

// ensureDateFolder creates nested year/month/day folders
func (dc *DriveClient) ensureDateFolder(ctx context.Context, rootID string, report *types.FinalReport) (string, error) {
	t := report.CompletedAt
	parent := rootID
	for _, name := range []string{
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
	} {
		id, err := dc.findOrCreateFolder(ctx, name, parent)
		if err != nil {
			return "", fmt.Errorf("unable to create folder %s: %w", name, err)
		}
		parent = id
	}
	return parent, nil
}

// findOrCreateFolder finds or creates a folder; an empty parentID means the Drive root
func (dc *DriveClient) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	file, err := dc.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
