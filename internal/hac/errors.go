package hac

import (
	"errors"
	"fmt"
)

// ErrNoMatch is returned by Download when the query matched no catalog entry.
var ErrNoMatch = errors.New("no files matched")

// CSRFError is returned when a CSRF token cannot be obtained from a portal
// document. A client that fails CSRF extraction is unusable for the current
// session attempt but may be retried by a later login.
type CSRFError struct {
	URL string
	Err error
}

func (e *CSRFError) Error() string {
	return fmt.Sprintf("csrf token from %s: %v", e.URL, e.Err)
}

func (e *CSRFError) Unwrap() error { return e.Err }

// LoginError is returned when the credentialed login is rejected.
type LoginError struct {
	Status int
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login rejected with status %d", e.Status)
}

// CatalogError is returned when the remote file listing cannot be fetched.
// The cached catalog keeps its previous value.
type CatalogError struct {
	Status int
	Err    error
}

func (e *CatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch file listing: %v", e.Err)
	}
	return fmt.Sprintf("fetch file listing: status %d", e.Status)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// ArchiveError is returned when the server-side zip build fails. No archive
// exists to fetch, so the download must not be attempted.
type ArchiveError struct {
	Status int
	Err    error
}

func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build archive: %v", e.Err)
	}
	return fmt.Sprintf("build archive: status %d", e.Status)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// DownloadError is returned when streaming the archive to disk fails.
type DownloadError struct {
	Path string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download to %s: %v", e.Path, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
