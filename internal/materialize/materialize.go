// Package materialize turns a downloaded portal archive into the local
// directory layout: unpack into a clean extraction tree, then relocate the
// Tomcat log files into a flat per-query output folder.
package materialize

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TomcatLogDir is the conventional subpath inside an extracted archive that
// holds the portal's Tomcat log files.
var TomcatLogDir = filepath.Join("logs", "tomcat")

// ExtractError is returned when an archive cannot be unpacked. The archive
// file is left in place for inspection.
type ExtractError struct {
	Archive string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// ArchivePath returns the transient archive location for one download job.
func ArchivePath(root, clientName, query string) string {
	return filepath.Join(root, clientName+"-"+query+".zip")
}

// ExtractPath returns the transient extraction root for one download job.
func ExtractPath(root, clientName, query string) string {
	return filepath.Join(root, clientName+"_"+query)
}

// OutputDir returns the stable per-query output folder.
func OutputDir(root, query string) string {
	return filepath.Join(root, NormalizeQuery(query))
}

// TargetName builds a relocated file name embedding the client identity, the
// query and the original file's base name and extension.
func TargetName(clientName, query, baseName string) string {
	return clientName + "_" + query + "_" + baseName
}

// NormalizeQuery maps non-alphanumeric separators to underscores so a query
// string can name a directory.
func NormalizeQuery(query string) string {
	var b strings.Builder
	for _, r := range query {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// AlreadyRetrieved reports whether the per-query output folder already holds
// a file relocated by the named client. Used as the download short-circuit.
func AlreadyRetrieved(root, clientName, query string) bool {
	entries, err := os.ReadDir(OutputDir(root, query))
	if err != nil {
		return false
	}
	prefix := clientName + "_"
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), prefix) {
			return true
		}
	}
	return false
}

// Unpack extracts archivePath fully into extractPath. An existing extraction
// tree is removed first so extraction always starts clean; there are no merge
// semantics. On success the archive file is deleted; on failure it is left in
// place and the job aborts.
func Unpack(archivePath, extractPath string) error {
	if err := os.RemoveAll(extractPath); err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}

	for _, f := range r.File {
		if err := extractFile(f, extractPath); err != nil {
			r.Close()
			return &ExtractError{Archive: archivePath, Err: err}
		}
	}

	r.Close()
	if err := os.Remove(archivePath); err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}
	return nil
}

func extractFile(f *zip.File, extractPath string) error {
	// Reject entries that would escape the extraction root.
	dest := filepath.Join(extractPath, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(dest, filepath.Clean(extractPath)+string(os.PathSeparator)) {
		return fmt.Errorf("entry %q escapes extraction root", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Relocation describes one relocation pass over a fresh extraction tree.
type Relocation struct {
	ExtractPath   string
	DownloadsRoot string
	ClientName    string
	Query         string
	MatchCount    int
}

// RelocateLogs moves the Tomcat log files out of the extraction tree into the
// per-query output folder and removes the tree. It only applies when exactly
// one remote file was matched; a multi-file archive's internal layout is
// ambiguous and is left as-is. When the conventional log subdirectory is
// absent the extraction tree is also left untouched. Returns the relocated
// target paths.
func RelocateLogs(rel Relocation) ([]string, error) {
	if rel.MatchCount != 1 {
		return nil, nil
	}

	src := filepath.Join(rel.ExtractPath, TomcatLogDir)
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	outDir := OutputDir(rel.DownloadsRoot, rel.Query)
	// Concurrent clients may race to create the shared query folder;
	// MkdirAll tolerates that.
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output folder %s: %w", outDir, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("read log folder %s: %w", src, err)
	}

	var moved []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		target := filepath.Join(outDir, TargetName(rel.ClientName, rel.Query, e.Name()))
		// Last write wins, no versioning.
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return moved, fmt.Errorf("replace %s: %w", target, err)
		}
		if err := moveFile(filepath.Join(src, e.Name()), target); err != nil {
			return moved, err
		}
		moved = append(moved, target)
	}

	if err := os.RemoveAll(rel.ExtractPath); err != nil {
		return moved, fmt.Errorf("remove extraction tree %s: %w", rel.ExtractPath, err)
	}
	return moved, nil
}

// moveFile renames src to dst, falling back to copy+remove when the rename
// crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("move %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	return os.Remove(src)
}
