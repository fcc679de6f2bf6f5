// Package drive lists the PDFs in a shared Google Drive folder and downloads
// file contents through the Drive v3 API, keyed by an API key.
package drive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/drive/v3/"
	listPageSize   = 1000
	userAgent      = "submissions-pipeline/1.0"
)

const listFields googleapi.Field = "nextPageToken, files(id, name, mimeType, size)"

type Config struct {
	APIKey     string
	BaseURL    string        // defaults to DefaultBaseURL
	Timeout    time.Duration // per request; 0 leaves it to the caller's ctx
	MaxBytes   int64         // download cap, default 100MB
	RatePerSec float64       // 0 disables rate limiting
	Burst      int
}

// Document is one file in a folder listing.
type Document struct {
	ID       string
	Name     string
	MIMEType string
	Size     *int64
}

type Client struct {
	cfg     Config
	files   *driveapi.FilesService
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewClient builds a Drive service for cfg. No request is made.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 100 << 20
	}

	svc, err := driveapi.NewService(ctx,
		option.WithAPIKey(cfg.APIKey),
		option.WithEndpoint(cfg.BaseURL),
		option.WithUserAgent(userAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}

	c := &Client{cfg: cfg, files: svc.Files, log: logger}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return c, nil
}

// ListDocuments returns the PDFs directly inside folderID, following pagination.
func (c *Client) ListDocuments(ctx context.Context, folderID string) ([]Document, error) {
	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return nil, fmt.Errorf("folder id is required")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var out []Document
	call := c.files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false and mimeType = '%s'", folderID, constants.MIMEPDF)).
		Fields(listFields).
		PageSize(listPageSize)

	err := call.Pages(ctx, func(page *driveapi.FileList) error {
		for _, f := range page.Files {
			if !constants.IsPDF(f.MimeType, f.Name) {
				continue
			}
			d := Document{ID: f.Id, Name: f.Name, MIMEType: f.MimeType}
			if f.Size > 0 {
				n := f.Size
				d.Size = &n
			}
			out = append(out, d)
		}
		if page.NextPageToken != "" {
			return c.wait(ctx)
		}
		return nil
	})
	if err != nil {
		err = asAPIError(err)
		c.log.Error("drive.list.failed", "folder_id", folderID, "error", err)
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}

	c.log.Info("drive.list.ok", "folder_id", folderID, "documents", len(out))
	return out, nil
}

// DownloadBytes returns the raw contents of fileID. A body larger than the
// configured cap is an error, not a truncation.
func (c *Client) DownloadBytes(ctx context.Context, fileID string) ([]byte, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, fmt.Errorf("file id is required")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	reqID := uuid.New().String()
	start := time.Now()
	resp, err := c.files.Get(fileID).Context(ctx).Download()
	if err != nil {
		err = asAPIError(err)
		c.log.Error("drive.download.failed", "req_id", reqID, "file_id", fileID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("drive.download.body_close_error", "req_id", reqID, "error", err)
		}
	}()

	raw, err := readCapped(resp.Body, c.cfg.MaxBytes)
	if err != nil {
		c.log.Error("drive.download.failed", "req_id", reqID, "file_id", fileID, "error", err)
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	c.log.Info("drive.download.ok", "req_id", reqID, "file_id", fileID, "bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())
	return raw, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
