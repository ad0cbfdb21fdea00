package livestream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Directory is the stream directory lookup: the livestream pages currently
// configured in the backend. Implementations can be static, file-based, remote
// over HTTP, or stored in Redis. Callers do not need to know which is used.
type Directory interface {
	ListPages(ctx context.Context) ([]Page, error)
}

// ErrInvalidPage is returned when a directory document carries an entry that
// cannot be scheduled.
var ErrInvalidPage = errors.New("invalid livestream page")

// StaticDirectory is an in-memory implementation of Directory.
type StaticDirectory struct {
	pages []Page
}

// NewStaticDirectory returns a directory that always lists pages.
func NewStaticDirectory(pages ...Page) *StaticDirectory {
	return &StaticDirectory{pages: pages}
}

// ListPages implements Directory.ListPages.
func (d *StaticDirectory) ListPages(ctx context.Context) ([]Page, error) {
	out := make([]Page, len(d.pages))
	copy(out, d.pages)
	return out, nil
}

// pageDocument is the wire form shared by the HTTP, file and Redis directories.
// YAML is a superset of JSON, so both tag sets describe the same document.
type pageDocument struct {
	Pages []pageEntry `json:"pages" yaml:"pages"`
}

type pageEntry struct {
	Slug   string      `json:"slug" yaml:"slug"`
	Config configEntry `json:"config" yaml:"config"`
}

type configEntry struct {
	ScheduledStart  string `json:"scheduled_start" yaml:"scheduled_start"`
	ScheduledEnd    string `json:"scheduled_end,omitempty" yaml:"scheduled_end,omitempty"`
	PrimaryVideoID  string `json:"primary_video_id" yaml:"primary_video_id"`
	BackupVideoID   string `json:"backup_video_id,omitempty" yaml:"backup_video_id,omitempty"`
	FailoverEnabled bool   `json:"failover_enabled" yaml:"failover_enabled"`
}

// toPages validates the document and converts it to domain pages, in order.
func (doc pageDocument) toPages() ([]Page, error) {
	pages := make([]Page, 0, len(doc.Pages))
	for i, e := range doc.Pages {
		if e.Slug == "" {
			return nil, fmt.Errorf("%w: entry %d has no slug", ErrInvalidPage, i)
		}
		if e.Config.PrimaryVideoID == "" {
			return nil, fmt.Errorf("%w: %q has no primary video", ErrInvalidPage, e.Slug)
		}
		start, err := time.Parse(time.RFC3339, e.Config.ScheduledStart)
		if err != nil {
			return nil, fmt.Errorf("%w: %q scheduled_start: %v", ErrInvalidPage, e.Slug, err)
		}

		cfg := Config{
			ScheduledStart:  start,
			PrimaryVideoID:  e.Config.PrimaryVideoID,
			BackupVideoID:   e.Config.BackupVideoID,
			FailoverEnabled: e.Config.FailoverEnabled,
		}
		if e.Config.ScheduledEnd != "" {
			end, err := time.Parse(time.RFC3339, e.Config.ScheduledEnd)
			if err != nil {
				return nil, fmt.Errorf("%w: %q scheduled_end: %v", ErrInvalidPage, e.Slug, err)
			}
			cfg.ScheduledEnd = &end
		}
		pages = append(pages, Page{Slug: e.Slug, Config: cfg})
	}
	return pages, nil
}

// HTTPDirectory queries the backend API for the configured livestream pages.
type HTTPDirectory struct {
	url    string
	client *http.Client
}

// NewHTTPDirectory returns a directory that GETs url. A non-positive timeout
// leaves the request bounded only by the caller's context.
func NewHTTPDirectory(url string, timeout time.Duration) *HTTPDirectory {
	client := &http.Client{}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &HTTPDirectory{url: url, client: client}
}

// ListPages implements Directory.ListPages.
func (d *HTTPDirectory) ListPages(ctx context.Context) ([]Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query directory: unexpected status %d", resp.StatusCode)
	}

	var doc pageDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}
	return doc.toPages()
}

// FileDirectory reads the livestream pages from a YAML or JSON file.
type FileDirectory struct {
	path string
}

// NewFileDirectory returns a directory backed by the file at path.
func NewFileDirectory(path string) *FileDirectory {
	return &FileDirectory{path: path}
}

// ListPages implements Directory.ListPages.
func (d *FileDirectory) ListPages(ctx context.Context) ([]Page, error) {
	b, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	var doc pageDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse directory file %s: %w", d.path, err)
	}
	return doc.toPages()
}
