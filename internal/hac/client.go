// Package hac implements the client for Hybris Administration Console
// portals: cookie-jar session transport, two-phase CSRF + form login, cached
// file catalog, server-side zip requests and streamed archive downloads.
package hac

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yunusemregul/hacmanager/internal/config"
	"github.com/yunusemregul/hacmanager/internal/logging"
	"github.com/yunusemregul/hacmanager/internal/materialize"
	"github.com/yunusemregul/hacmanager/internal/metrics"
	"github.com/yunusemregul/hacmanager/internal/storage"
)

// Portal is the capability surface the fleet orchestrator drives. Alternative
// auth schemes can substitute their own implementation.
type Portal interface {
	Name() string
	IsLoggedIn() bool
	GetFiles(ctx context.Context) error
	Search(pattern string) []FileEntry
	Download(ctx context.Context, pattern string) error
}

// endpointURLs is the per-portal endpoint set, all derived from the same base
// URL at construction.
type endpointURLs struct {
	csrfPreLogin  string
	csrfPostLogin string
	login         string
	data          string
	zip           string
	download      string
}

// Options holds construction parameters shared by all clients.
type Options struct {
	DownloadsDir string
	Timeout      time.Duration // API call deadline, not applied to streaming
	Sink         storage.Backend
}

// Client is one portal facade. Each client owns its transport, cookie jar,
// catalog and filesystem paths exclusively; instances for different portals
// may run concurrently.
type Client struct {
	name         string
	urls         endpointURLs
	creds        config.Credentials
	transport    *transport
	log          *zap.Logger
	downloadsDir string
	sink         storage.Backend

	mu        sync.RWMutex
	csrfToken string
	loggedIn  bool
	files     []FileEntry
}

// New builds a client for one configured portal.
func New(portal config.Portal, eps config.Endpoints, opts Options) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DownloadsDir == "" {
		opts.DownloadsDir = "downloads"
	}

	tr, err := newTransport(portal.InsecureSkipVerify, opts.Timeout)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(portal.BaseURL, "/")
	return &Client{
		name: portal.Name,
		urls: endpointURLs{
			csrfPreLogin:  base + eps.CSRFPreLogin,
			csrfPostLogin: base + eps.CSRFPostLogin,
			login:         base + eps.Login,
			data:          base + eps.Data,
			zip:           base + eps.Zip,
			download:      base + eps.Download,
		},
		creds:        portal.Credentials,
		transport:    tr,
		log:          logging.L().With(zap.String("portal", portal.Name)),
		downloadsDir: opts.DownloadsDir,
		sink:         opts.Sink,
	}, nil
}

// Name returns the portal identity used in logs and relocated file names.
func (c *Client) Name() string { return c.name }

// GetFiles ensures the session is authenticated and refreshes the catalog.
// A failure is reported and leaves the client's persistent state at its last
// good value; it does not poison future calls.
func (c *Client) GetFiles(ctx context.Context) error {
	if err := c.RefreshCatalog(ctx); err != nil {
		c.log.Error("could not get file listing", zap.Error(err))
		return err
	}
	return nil
}

// Download resolves pattern against the catalog, requests a server-built zip
// of the matches, streams it to disk, unpacks it and relocates the contained
// Tomcat logs. Any stage failure aborts the remaining stages for this call
// only. A query whose output folder already holds a file from this client is
// skipped without any network traffic.
func (c *Client) Download(ctx context.Context, pattern string) error {
	matched := c.Search(pattern)
	if len(matched) == 0 {
		c.log.Info("no files found", zap.String("query", pattern))
		metrics.RecordDownload(c.name, "no_match")
		return ErrNoMatch
	}

	log := c.log.With(
		zap.String("query", pattern),
		zap.String("job", uuid.NewString()),
	)
	log.Info("matched files", zap.Int("count", len(matched)))

	if materialize.AlreadyRetrieved(c.downloadsDir, c.name, pattern) {
		log.Info("already downloaded, skipping")
		metrics.RecordDownload(c.name, "skipped")
		return nil
	}

	paths := make([]string, len(matched))
	for i, f := range matched {
		paths[i] = f.Absolute
	}

	info, err := c.RequestArchive(ctx, paths)
	if err != nil {
		log.Error("could not build archive", zap.Error(err))
		metrics.RecordDownload(c.name, "error")
		return err
	}

	if err := os.MkdirAll(c.downloadsDir, 0755); err != nil {
		metrics.RecordDownload(c.name, "error")
		return &DownloadError{Path: c.downloadsDir, Err: err}
	}

	archivePath := materialize.ArchivePath(c.downloadsDir, c.name, pattern)
	if err := c.StreamDownload(ctx, archivePath, info.Size); err != nil {
		log.Error("download failed", zap.Error(err))
		metrics.RecordDownload(c.name, "error")
		return err
	}

	extractPath := materialize.ExtractPath(c.downloadsDir, c.name, pattern)
	log.Info("extracting archive", zap.String("path", extractPath))
	if err := materialize.Unpack(archivePath, extractPath); err != nil {
		log.Error("extraction failed", zap.Error(err))
		metrics.RecordDownload(c.name, "error")
		return err
	}

	moved, err := materialize.RelocateLogs(materialize.Relocation{
		ExtractPath:   extractPath,
		DownloadsRoot: c.downloadsDir,
		ClientName:    c.name,
		Query:         pattern,
		MatchCount:    len(matched),
	})
	if err != nil {
		log.Error("relocation failed", zap.Error(err))
		metrics.RecordDownload(c.name, "error")
		return err
	}
	for range moved {
		metrics.RecordRelocation(c.name)
	}

	c.mirrorToSink(ctx, log, pattern, moved)

	metrics.RecordDownload(c.name, "success")
	log.Info("all operations completed")
	return nil
}

// mirrorToSink uploads relocated files to the configured sink. Sink failures
// are reported but never fail the download: the local copy is authoritative.
func (c *Client) mirrorToSink(ctx context.Context, log *zap.Logger, query string, paths []string) {
	if c.sink == nil || len(paths) == 0 {
		return
	}

	prefix := materialize.NormalizeQuery(query)
	for _, p := range paths {
		if err := c.uploadToSink(ctx, prefix, p); err != nil {
			log.Warn("sink upload failed", zap.String("file", p), zap.Error(err))
			metrics.RecordSinkUpload(c.sink.Type(), false)
			continue
		}
		metrics.RecordSinkUpload(c.sink.Type(), true)
	}
}

func (c *Client) uploadToSink(ctx context.Context, prefix, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	key := prefix + "/" + filepath.Base(path)
	return c.sink.PutObject(ctx, key, f, st.Size())
}

func logURL(u string) zap.Field {
	return zap.String("url", u)
}
