package beatoven

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewTrackRequest(t *testing.T) {
	tests := []struct {
		name         string
		duration     int
		format       Format
		wantErr      bool
		wantDuration int
		wantFormat   Format
	}{
		{name: "defaults", duration: 0, format: "", wantDuration: 180, wantFormat: FormatMP3},
		{name: "min duration", duration: 30, format: FormatMP3, wantDuration: 30, wantFormat: FormatMP3},
		{name: "max duration", duration: 600, format: FormatOGG, wantDuration: 600, wantFormat: FormatOGG},
		{name: "wav", duration: 180, format: FormatWAV, wantDuration: 180, wantFormat: FormatWAV},
		{name: "duration too short", duration: 29, format: FormatMP3, wantErr: true},
		{name: "duration too long", duration: 601, format: FormatMP3, wantErr: true},
		{name: "negative duration", duration: -1, format: FormatMP3, wantErr: true},
		{name: "unknown format", duration: 180, format: "flac", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewTrackRequest("test prompt", tt.duration, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewTrackRequest() error = nil; want validation error")
				}
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("NewTrackRequest() error = %T; want *ValidationError", err)
				}
				var domainErr *Error
				if errors.As(err, &domainErr) {
					t.Fatalf("NewTrackRequest() error is *Error; want a separate validation channel")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTrackRequest() error = %v; want nil", err)
			}
			if req.Duration != tt.wantDuration {
				t.Fatalf("NewTrackRequest() duration = %d; want %d", req.Duration, tt.wantDuration)
			}
			if req.Format != tt.wantFormat {
				t.Fatalf("NewTrackRequest() format = %q; want %q", req.Format, tt.wantFormat)
			}
			if req.Prompt.Text != "test prompt" {
				t.Fatalf("NewTrackRequest() prompt = %q; want %q", req.Prompt.Text, "test prompt")
			}
		})
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantID   string
		wantErr  bool
		wantText string
	}{
		{name: "ok", status: http.StatusOK, body: `{"task_id":"t1"}`, wantID: "t1"},
		{name: "server error", status: http.StatusInternalServerError, body: `boom`, wantErr: true, wantText: "boom"},
		{name: "missing task id", status: http.StatusOK, body: `{}`, wantErr: true},
		{name: "empty task id", status: http.StatusOK, body: `{"task_id":""}`, wantErr: true},
		{name: "malformed body", status: http.StatusOK, body: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != "POST" || r.URL.Path != "/tracks/compose" {
					t.Errorf("Compose() request = %s %s; want POST /tracks/compose", r.Method, r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
					t.Errorf("Compose() auth header = %q; want %q", got, "Bearer test-key")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(&Config{APIKey: "test-key", BaseURL: srv.URL})
			resp, err := c.Compose(context.Background(), &TrackRequest{Prompt: TextPrompt{Text: "p"}, Duration: 180, Format: FormatMP3})
			if tt.wantErr {
				var domainErr *Error
				if !errors.As(err, &domainErr) {
					t.Fatalf("Compose() error = %v (%T); want *Error", err, err)
				}
				if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
					t.Fatalf("Compose() error = %v; want response text %q as context", err, tt.wantText)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compose() error = %v; want nil", err)
			}
			if resp.TaskID != tt.wantID {
				t.Fatalf("Compose() task id = %q; want %q", resp.TaskID, tt.wantID)
			}
		})
	}
}

func TestTaskStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantErr  bool
		wantText string
	}{
		{name: "composing", status: http.StatusOK, body: `{"status":"composing"}`, want: StatusComposing},
		{name: "completed with meta", status: http.StatusOK, body: `{"status":"completed","meta":{"track_url":"https://x/t.mp3"}}`, want: StatusCompleted},
		{name: "composed", status: http.StatusOK, body: `{"status":"composed"}`, want: StatusComposed},
		{name: "unknown status", status: http.StatusOK, body: `{"status":"exploded"}`, wantErr: true, wantText: "exploded"},
		{name: "not found", status: http.StatusNotFound, body: `no such task`, wantErr: true, wantText: "no such task"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != "GET" || r.URL.Path != "/tasks/t1" {
					t.Errorf("TaskStatus() request = %s %s; want GET /tasks/t1", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(&Config{APIKey: "test-key", BaseURL: srv.URL})
			status, err := c.TaskStatus(context.Background(), "t1")
			if tt.wantErr {
				var domainErr *Error
				if !errors.As(err, &domainErr) {
					t.Fatalf("TaskStatus() error = %v (%T); want *Error", err, err)
				}
				if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
					t.Fatalf("TaskStatus() error = %v; want %q as context", err, tt.wantText)
				}
				return
			}
			if err != nil {
				t.Fatalf("TaskStatus() error = %v; want nil", err)
			}
			if status.Status != tt.want {
				t.Fatalf("TaskStatus() = %q; want %q", status.Status, tt.want)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []string
		maxPolls  int
		want      string
		wantErr   bool
		wantPolls int
	}{
		{name: "completes after two polls", statuses: []string{"composing", "composing", "completed"}, want: StatusCompleted, wantPolls: 3},
		{name: "immediate completion", statuses: []string{"composed"}, want: StatusComposed, wantPolls: 1},
		{name: "failed", statuses: []string{"failed"}, wantErr: true, wantPolls: 1},
		{name: "poll limit", statuses: []string{"composing", "composing", "composing", "completed"}, maxPolls: 2, wantErr: true, wantPolls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var polls int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				status := tt.statuses[len(tt.statuses)-1]
				if polls < len(tt.statuses) {
					status = tt.statuses[polls]
				}
				polls++
				fmt.Fprintf(w, `{"status":%q,"meta":{"track_url":"https://x/t.mp3"}}`, status)
			}))
			defer srv.Close()

			c := New(&Config{
				APIKey:       "test-key",
				BaseURL:      srv.URL,
				PollInterval: 10 * time.Millisecond,
				MaxPolls:     tt.maxPolls,
			})
			status, err := c.Watch(context.Background(), "t1")
			if tt.wantErr {
				var domainErr *Error
				if !errors.As(err, &domainErr) {
					t.Fatalf("Watch() error = %v (%T); want *Error", err, err)
				}
			} else {
				if err != nil {
					t.Fatalf("Watch() error = %v; want nil", err)
				}
				if status.Status != tt.want {
					t.Fatalf("Watch() = %q; want %q", status.Status, tt.want)
				}
			}
			if polls != tt.wantPolls {
				t.Fatalf("Watch() polled %d times; want %d", polls, tt.wantPolls)
			}
		})
	}
}

func TestWatchCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"composing"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(&Config{APIKey: "test-key", BaseURL: srv.URL, PollInterval: time.Hour})
	_, err := c.Watch(ctx, "t1")
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("Watch() error = %v (%T); want *Error", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Watch() error = %v; want context deadline as cause", err)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("Download() sent auth header to track URL")
		}
		switch r.URL.Path {
		case "/track.mp3":
			_, _ = w.Write([]byte("abc"))
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("denied"))
		}
	}))
	defer srv.Close()

	c := New(&Config{APIKey: "test-key"})

	t.Run("writes file", func(t *testing.T) {
		dir := t.TempDir()
		path, err := c.Download(context.Background(), srv.URL+"/track.mp3", dir, "song", FormatMP3)
		if err != nil {
			t.Fatalf("Download() error = %v; want nil", err)
		}
		want := filepath.Join(dir, "song.mp3")
		if path != want {
			t.Fatalf("Download() = %q; want %q", path, want)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("couldn't read downloaded file: %v", err)
		}
		if string(b) != "abc" {
			t.Fatalf("Download() wrote %q (%d bytes); want %q", b, len(b), "abc")
		}
	})

	t.Run("keeps existing extension", func(t *testing.T) {
		dir := t.TempDir()
		path, err := c.Download(context.Background(), srv.URL+"/track.mp3", dir, "song.mp3", FormatMP3)
		if err != nil {
			t.Fatalf("Download() error = %v; want nil", err)
		}
		if want := filepath.Join(dir, "song.mp3"); path != want {
			t.Fatalf("Download() = %q; want %q", path, want)
		}
	})

	t.Run("synthesizes filename", func(t *testing.T) {
		dir := t.TempDir()
		path, err := c.Download(context.Background(), srv.URL+"/track.mp3", dir, "", FormatWAV)
		if err != nil {
			t.Fatalf("Download() error = %v; want nil", err)
		}
		name := filepath.Base(path)
		if !strings.HasPrefix(name, "composed_track_") || !strings.HasSuffix(name, ".wav") {
			t.Fatalf("Download() filename = %q; want composed_track_*.wav", name)
		}
	})

	t.Run("non-200 writes nothing", func(t *testing.T) {
		dir := t.TempDir()
		_, err := c.Download(context.Background(), srv.URL+"/forbidden", dir, "song", FormatMP3)
		var domainErr *Error
		if !errors.As(err, &domainErr) {
			t.Fatalf("Download() error = %v (%T); want *Error", err, err)
		}
		if !strings.Contains(err.Error(), "denied") {
			t.Fatalf("Download() error = %v; want response text as context", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "song.mp3")); !os.IsNotExist(err) {
			t.Fatalf("Download() wrote a file on failure")
		}
	})
}

func TestGenerateMusic(t *testing.T) {
	var composes, polls, downloads int
	mux := http.NewServeMux()
	mux.HandleFunc("/tracks/compose", func(w http.ResponseWriter, r *http.Request) {
		composes++
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("compose auth header = %q; want %q", got, "Bearer test-key")
		}
		fmt.Fprint(w, `{"task_id":"t1"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/tasks/t1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			fmt.Fprint(w, `{"status":"composing"}`)
			return
		}
		fmt.Fprintf(w, `{"status":"completed","meta":{"track_url":"%s/track.mp3"}}`, srv.URL)
	})
	mux.HandleFunc("/track.mp3", func(w http.ResponseWriter, r *http.Request) {
		downloads++
		if r.Header.Get("Authorization") != "" {
			t.Errorf("download sent auth header")
		}
		_, _ = w.Write([]byte("abc"))
	})

	dir := t.TempDir()
	c := New(&Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		PollInterval: 10 * time.Millisecond,
	})
	path, err := c.GenerateMusic(context.Background(), "test prompt", 180, FormatMP3, dir, "f")
	if err != nil {
		t.Fatalf("GenerateMusic() error = %v; want nil", err)
	}
	if want := filepath.Join(dir, "f.mp3"); path != want {
		t.Fatalf("GenerateMusic() = %q; want %q", path, want)
	}
	if composes != 1 {
		t.Fatalf("GenerateMusic() composed %d times; want 1", composes)
	}
	if polls < 1 {
		t.Fatalf("GenerateMusic() polled %d times; want at least 1", polls)
	}
	if downloads != 1 {
		t.Fatalf("GenerateMusic() downloaded %d times; want 1", downloads)
	}
}

func TestGenerateMusicFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		meta     string
		wantText string
	}{
		{name: "task failed", status: "failed", meta: `{}`, wantText: "failed"},
		{name: "missing track url", status: "completed", meta: `{}`, wantText: "no track URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var downloads int
			mux := http.NewServeMux()
			mux.HandleFunc("/tracks/compose", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"task_id":"t1"}`)
			})
			mux.HandleFunc("/tasks/t1", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"status":%q,"meta":%s}`, tt.status, tt.meta)
			})
			mux.HandleFunc("/track.mp3", func(w http.ResponseWriter, r *http.Request) {
				downloads++
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			c := New(&Config{
				APIKey:       "test-key",
				BaseURL:      srv.URL,
				PollInterval: 10 * time.Millisecond,
			})
			_, err := c.GenerateMusic(context.Background(), "test prompt", 0, "", t.TempDir(), "")
			var domainErr *Error
			if !errors.As(err, &domainErr) {
				t.Fatalf("GenerateMusic() error = %v (%T); want *Error", err, err)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Fatalf("GenerateMusic() error = %v; want %q", err, tt.wantText)
			}
			if downloads != 0 {
				t.Fatalf("GenerateMusic() downloaded %d times; want 0", downloads)
			}
		})
	}
}

func TestGenerateMusicValidation(t *testing.T) {
	c := New(&Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:0"})
	_, err := c.GenerateMusic(context.Background(), "test prompt", 10, FormatMP3, "", "")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("GenerateMusic() error = %v (%T); want *ValidationError", err, err)
	}
}

func TestConnectionError(t *testing.T) {
	// Port 0 is never connectable, so this exercises the connection-level
	// failure path of the normalize helper.
	c := New(&Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:0", Timeout: time.Second})
	_, err := c.Compose(context.Background(), &TrackRequest{Prompt: TextPrompt{Text: "p"}, Duration: 180, Format: FormatMP3})
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("Compose() error = %v (%T); want *Error", err, err)
	}
}
