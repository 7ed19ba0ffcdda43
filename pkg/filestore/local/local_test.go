package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUploadDownload(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := New(root, false)

	src := filepath.Join(t.TempDir(), "src.mp3")
	if err := os.WriteFile(src, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Upload(ctx, src, "track.mp3"); err != nil {
		t.Fatalf("Upload() error = %v; want nil", err)
	}

	dst := filepath.Join(t.TempDir(), "dst.mp3")
	if err := s.Download(ctx, dst, "track.mp3"); err != nil {
		t.Fatalf("Download() error = %v; want nil", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "abc" {
		t.Fatalf("Download() content = %q; want %q", b, "abc")
	}
}

func TestDownloadMissing(t *testing.T) {
	s := New(t.TempDir(), false)
	if err := s.Download(context.Background(), filepath.Join(t.TempDir(), "out.mp3"), "missing.mp3"); err == nil {
		t.Fatal("Download() error = nil; want missing file error")
	}
}
