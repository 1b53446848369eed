package hac

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yunusemregul/hacmanager/internal/metrics"
)

// FileEntry describes one remote log file. Absolute is the fully qualified
// remote path the zip endpoint expects.
type FileEntry struct {
	Name     string `json:"name"`
	Absolute string `json:"absolute"`
	Size     int64  `json:"size"`
}

// RefreshCatalog fetches the remote file listing and replaces the cached
// catalog with every entry whose size is positive; zero-size entries are
// placeholders or directories, not retrievable files. On failure the catalog
// keeps its previous value. Logs in first when the session is not yet
// authenticated.
func (c *Client) RefreshCatalog(ctx context.Context) error {
	if !c.IsLoggedIn() {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	c.log.Debug("fetching file listing")
	start := time.Now()

	resp, err := c.transport.Get(ctx, c.urls.data)
	if err != nil {
		return &CatalogError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return &CatalogError{Status: resp.StatusCode}
	}

	var entries []FileEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return &CatalogError{Err: err}
	}

	files := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.Size > 0 {
			files = append(files, e)
		}
	}

	c.mu.Lock()
	c.files = files
	c.mu.Unlock()

	metrics.SetCatalogFiles(c.name, len(files))
	metrics.RecordCatalogRefresh(c.name, time.Since(start))
	c.log.Info("got file listing", zap.Int("files", len(files)))
	return nil
}

// Search returns every cached entry whose name contains pattern, preserving
// catalog order. It is a pure scan: no network traffic, an empty result when
// nothing matches, and an empty result when the session is not authenticated.
func (c *Client) Search(pattern string) []FileEntry {
	if !c.IsLoggedIn() {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var found []FileEntry
	for _, f := range c.files {
		if strings.Contains(f.Name, pattern) {
			found = append(found, f)
		}
	}
	return found
}
