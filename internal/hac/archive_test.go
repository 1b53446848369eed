package hac

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRequestArchive_JoinsPathsWithPipe(t *testing.T) {
	p := newFakePortal()
	p.zipSize = 150
	c := testClient(t, p, Options{})
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	info, err := c.RequestArchive(context.Background(), []string{
		"/opt/hybris/log/tomcat/app.log",
		"/opt/hybris/log/tomcat/app.log.1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Size != 150 {
		t.Errorf("expected size 150, got %d", info.Size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.zipRequests) != 1 {
		t.Fatalf("expected 1 zip request, got %d", len(p.zipRequests))
	}
	want := "/opt/hybris/log/tomcat/app.log|/opt/hybris/log/tomcat/app.log.1"
	if p.zipRequests[0] != want {
		t.Errorf("expected files field %q, got %q", want, p.zipRequests[0])
	}
}

func TestRequestArchive_ServerError(t *testing.T) {
	p := newFakePortal()
	p.failZip = true
	c := testClient(t, p, Options{})
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err := c.RequestArchive(context.Background(), []string{"/x/app.log"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var archErr *ArchiveError
	if !errors.As(err, &archErr) {
		t.Fatalf("expected ArchiveError, got %T: %v", err, err)
	}
	if archErr.Status != 500 {
		t.Errorf("expected status 500, got %d", archErr.Status)
	}
}

func TestStreamDownload_WritesArchive(t *testing.T) {
	p := newFakePortal()
	p.zipBody = []byte("not really a zip but 29 bytes")
	c := testClient(t, p, Options{})
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "portal-query.zip")
	// Stale file from an aborted run must be replaced.
	if err := os.WriteFile(dest, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := c.StreamDownload(context.Background(), dest, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded archive: %v", err)
	}
	if string(got) != string(p.zipBody) {
		t.Errorf("archive content mismatch: %q", got)
	}
}

func TestStreamDownload_ServerError(t *testing.T) {
	p := newFakePortal()
	p.failDownload = true
	c := testClient(t, p, Options{})
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "portal-query.zip")
	err := c.StreamDownload(context.Background(), dest, 1)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %T: %v", err, err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("no file should exist after a failed download")
	}
}
