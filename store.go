package sheetform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
)

// TemplateStore retrieves template bytes by template name.
// A missing template is reported with an error wrapping ErrTemplateNotFound.
type TemplateStore interface {
	Fetch(ctx context.Context, template string) ([]byte, error)
}

// ValidTemplateName reports whether name can be used as the base name of a template file.
func ValidTemplateName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return !strings.Contains(name, "..")
}

// DirStore reads templates from <dir>/<template>.<ext>.
type DirStore struct {
	dir string
	ext string
}

// NewDirStore creates a store rooted at dir for files with extension ext (without the dot).
func NewDirStore(dir, ext string) *DirStore {
	return &DirStore{dir: dir, ext: strings.TrimPrefix(ext, ".")}
}

// Path returns the file path a template is read from.
func (s *DirStore) Path(template string) string {
	return filepath.Join(s.dir, template+"."+s.ext)
}

// Fetch reads the template file.
func (s *DirStore) Fetch(ctx context.Context, template string) ([]byte, error) {
	if !ValidTemplateName(template) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTemplateName, template)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(template)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("read template %q: %w", path, err)
	}
	return data, nil
}

// HTTPStore fetches templates from <baseURL>/<template>.<ext>.
// Concurrent fetches of the same template share one request.
type HTTPStore struct {
	baseURL string
	ext     string
	client  *http.Client
	group   singleflight.Group
}

// NewHTTPStore creates a store for baseURL. A nil client means http.DefaultClient,
// which imposes no timeout.
func NewHTTPStore(baseURL, ext string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		ext:     strings.TrimPrefix(ext, "."),
		client:  client,
	}
}

// URL returns the address a template is fetched from.
func (s *HTTPStore) URL(template string) string {
	return s.baseURL + "/" + url.PathEscape(template+"."+s.ext)
}

// Fetch downloads the template. Any non-2xx status is reported as not found.
func (s *HTTPStore) Fetch(ctx context.Context, template string) ([]byte, error) {
	if !ValidTemplateName(template) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTemplateName, template)
	}
	// The shared request outlives any one caller; each caller waits on its own ctx.
	ch := s.group.DoChan(template, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), s.URL(template))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Callers sharing a flight each get their own copy.
		return bytes.Clone(res.Val.([]byte)), nil
	}
}

func (s *HTTPStore) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", u, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s returned %s", ErrTemplateNotFound, u, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return data, nil
}
