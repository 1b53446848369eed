package hac

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yunusemregul/hacmanager/internal/metrics"
)

// pathDelimiter joins absolute remote paths in the zip request form field.
const pathDelimiter = "|"

// ArchiveInfo is the server's descriptor for a built archive. Size is the
// archive size in KB as reported by the portal.
type ArchiveInfo struct {
	Size int64 `json:"size"`
}

// RequestArchive asks the portal to build a zip of the given absolute remote
// paths. Any transport failure or non-200 response means no archive exists to
// fetch, so the caller must abort the job.
func (c *Client) RequestArchive(ctx context.Context, absolutePaths []string) (ArchiveInfo, error) {
	form := url.Values{
		"files": {strings.Join(absolutePaths, pathDelimiter)},
	}

	start := time.Now()
	resp, err := c.transport.PostForm(ctx, c.urls.zip, form)
	if err != nil {
		return ArchiveInfo{}, &ArchiveError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return ArchiveInfo{}, &ArchiveError{Status: resp.StatusCode}
	}

	var info ArchiveInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ArchiveInfo{}, &ArchiveError{Err: err}
	}

	metrics.RecordArchiveRequest(c.name, time.Since(start))
	c.log.Info("archive built", zap.Int64("size_kb", info.Size))
	return info, nil
}

// StreamDownload streams the built archive to destPath. An existing file at
// destPath is deleted first; there are no partial-resume semantics. Progress
// is logged proportionally to the size reported by RequestArchive. Safe to
// run for several clients concurrently on independent destination paths.
func (c *Client) StreamDownload(ctx context.Context, destPath string, sizeKB int64) error {
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return &DownloadError{Path: destPath, Err: err}
	}

	resp, err := c.transport.GetStream(ctx, c.urls.download)
	if err != nil {
		return &DownloadError{Path: destPath, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return &DownloadError{Path: destPath, Err: &ArchiveError{Status: resp.StatusCode}}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return &DownloadError{Path: destPath, Err: err}
	}

	pw := &progressWriter{
		w:      out,
		total:  sizeKB * 1024,
		log:    c.log,
		portal: c.name,
	}

	if _, err := io.Copy(pw, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return &DownloadError{Path: destPath, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(destPath)
		return &DownloadError{Path: destPath, Err: err}
	}

	c.log.Info("download completed",
		zap.String("path", destPath),
		zap.Int64("bytes", pw.written))
	return nil
}

// progressWriter counts bytes written and logs progress roughly every tenth
// of the expected total. The server reports the archive size in KB, so the
// final byte count may exceed the estimate slightly.
type progressWriter struct {
	w       io.Writer
	total   int64
	written int64
	lastPct int
	log     *zap.Logger
	portal  string
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	metrics.AddDownloadBytes(p.portal, int64(n))

	if p.total > 0 {
		pct := int(p.written * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct >= p.lastPct+10 {
			p.lastPct = pct - pct%10
			p.log.Info("downloading",
				zap.Int("percent", p.lastPct),
				zap.Int64("bytes", p.written))
		}
	}
	return n, err
}
