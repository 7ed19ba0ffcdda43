package beatoven

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateMusic(t *testing.T) {
	var polls int
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/tracks/compose", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"task_id":"t1"}`)
	})
	mux.HandleFunc("/tasks/t1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			fmt.Fprint(w, `{"status":"composing"}`)
			return
		}
		fmt.Fprintf(w, `{"status":"completed","meta":{"track_url":"%s/track.mp3"}}`, srv.URL)
	})
	mux.HandleFunc("/track.mp3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("abc"))
	})

	dir := t.TempDir()
	cfg := &Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		Timeout:      10 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}
	path, err := GenerateMusic(context.Background(), cfg, "test prompt", 180, "mp3", dir, "track")
	if err != nil {
		t.Fatalf("GenerateMusic() error = %v; want nil", err)
	}
	if want := filepath.Join(dir, "track.mp3"); path != want {
		t.Fatalf("GenerateMusic() = %q; want %q", path, want)
	}
}

func TestGenerateMusicInvalidProxy(t *testing.T) {
	cfg := &Config{
		APIKey: "test-key",
		Proxy:  "://invalid",
	}
	if _, err := GenerateMusic(context.Background(), cfg, "test prompt", 180, "mp3", t.TempDir(), ""); err == nil {
		t.Fatal("GenerateMusic() error = nil; want invalid proxy error")
	}
}
