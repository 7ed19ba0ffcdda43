package beatoven

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format is the audio container of a generated track.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatOGG Format = "ogg"
)

const (
	minDuration = 30
	maxDuration = 600

	defaultDuration = 180
	defaultFormat   = FormatMP3
)

// Statuses reported by the task endpoint.
const (
	StatusComposing = "composing"
	StatusComposed  = "composed"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var knownStatuses = map[string]struct{}{
	StatusComposing: {},
	StatusComposed:  {},
	StatusCompleted: {},
	StatusFailed:    {},
}

// TextPrompt describes the track to compose.
type TextPrompt struct {
	Text string `json:"text"`
}

// TrackRequest is a composition request. Build it with NewTrackRequest so
// defaults and range checks are applied.
type TrackRequest struct {
	Prompt   TextPrompt `json:"prompt"`
	Duration int        `json:"duration"`
	Format   Format     `json:"format"`
}

// NewTrackRequest builds a track request, applying the package defaults to
// zero values and validating the result. Failures are *ValidationError, not
// the domain error used for remote failures.
func NewTrackRequest(prompt string, duration int, format Format) (*TrackRequest, error) {
	if duration == 0 {
		duration = defaultDuration
	}
	if format == "" {
		format = defaultFormat
	}
	req := &TrackRequest{
		Prompt:   TextPrompt{Text: prompt},
		Duration: duration,
		Format:   format,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *TrackRequest) Validate() error {
	if r.Duration < minDuration || r.Duration > maxDuration {
		return &ValidationError{
			Field:  "duration",
			Reason: fmt.Sprintf("must be between %d and %d seconds, got %d", minDuration, maxDuration, r.Duration),
		}
	}
	switch r.Format {
	case FormatMP3, FormatWAV, FormatOGG:
	default:
		return &ValidationError{
			Field:  "format",
			Reason: fmt.Sprintf("must be one of mp3, wav or ogg, got %q", r.Format),
		}
	}
	return nil
}

// TaskResponse identifies a server-side composition job.
type TaskResponse struct {
	TaskID string `json:"task_id"`
}

// TrackStatus is the state of a composition task as reported by a poll.
type TrackStatus struct {
	Status string         `json:"status"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// TrackURL returns the download URL from the task metadata, if present.
func (s *TrackStatus) TrackURL() (string, bool) {
	v, ok := s.Meta["track_url"]
	if !ok {
		return "", false
	}
	u, ok := v.(string)
	if !ok || u == "" {
		return "", false
	}
	return u, true
}

func (s *TrackStatus) validate() error {
	if _, ok := knownStatuses[s.Status]; !ok {
		return fmt.Errorf("unknown task status %q", s.Status)
	}
	return nil
}

// Compose submits a composition request and returns the task handle.
func (c *Client) Compose(ctx context.Context, req *TrackRequest) (*TaskResponse, error) {
	c.log("beatoven: sending composition request: %+v", req)
	var resp TaskResponse
	body, err := c.do(ctx, "POST", "tracks/compose", req, &resp)
	if err != nil {
		return nil, err
	}
	if resp.TaskID == "" {
		return nil, newError("composition failed: (%s)", truncate(string(body)))
	}
	return &resp, nil
}

// TaskStatus polls a composition task once.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TrackStatus, error) {
	var status TrackStatus
	if _, err := c.do(ctx, "GET", fmt.Sprintf("tasks/%s", taskID), nil, &status); err != nil {
		return nil, err
	}
	if err := status.validate(); err != nil {
		return nil, wrapError(err, "status check failed")
	}
	return &status, nil
}

// Watch polls the task at the configured interval until it leaves the
// composing state. A failed task is a domain error; any other status is
// terminal and returned as-is. The wait between polls aborts promptly on
// context cancellation.
func (c *Client) Watch(ctx context.Context, taskID string) (*TrackStatus, error) {
	c.log("beatoven: watching task %s every %s", taskID, c.pollInterval)
	var polls int
	for {
		status, err := c.TaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case StatusComposing:
			polls++
			if c.maxPolls > 0 && polls >= c.maxPolls {
				return nil, newError("task %s still composing after %d polls", taskID, polls)
			}
			c.log("beatoven: task %s is still composing...", taskID)
			select {
			case <-ctx.Done():
				return nil, wrapError(ctx.Err(), "watch task %s cancelled", taskID)
			case <-time.After(c.pollInterval):
			}
		case StatusFailed:
			return nil, newError("task %s failed", taskID)
		default:
			c.log("beatoven: task %s has completed", taskID)
			return status, nil
		}
	}
}

// Download fetches a track from an arbitrary URL and writes it under dir,
// creating parent directories as needed. An empty filename is synthesized
// from the current time, and the format extension is appended unless the
// name already carries it. Nothing is written on a failed response.
func (c *Client) Download(ctx context.Context, url, dir, filename string, format Format) (string, error) {
	if dir == "" {
		dir = c.outputDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", wrapError(err, "couldn't create output directory %s", dir)
	}
	if filename == "" {
		filename = fmt.Sprintf("composed_track_%d", time.Now().Unix())
	}
	if !strings.HasSuffix(filename, fmt.Sprintf(".%s", format)) {
		filename = fmt.Sprintf("%s.%s", filename, format)
	}
	path := filepath.Join(dir, filename)
	c.log("beatoven: downloading track to %s", path)

	b, err := c.do(ctx, "GET", url, nil, nil)
	if err != nil {
		return "", err
	}
	if err := writeFile(path, b); err != nil {
		return "", wrapError(err, "couldn't write track to %s", path)
	}
	c.log("beatoven: successfully downloaded track to %s", path)
	return path, nil
}

func writeFile(path string, b []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

// GenerateMusic drives the whole flow: build a request, submit it, watch the
// task to a terminal state and download the resulting track. It returns the
// local file path. Every remote failure surfaces as *Error; an invalid
// prompt/duration/format combination returns *ValidationError before any
// network call is made.
func (c *Client) GenerateMusic(ctx context.Context, prompt string, duration int, format Format, outputDir, filename string) (string, error) {
	if duration == 0 {
		duration = c.defaultDuration
	}
	if format == "" {
		format = c.defaultFormat
	}
	req, err := NewTrackRequest(prompt, duration, format)
	if err != nil {
		return "", err
	}
	c.log("beatoven: generating music with prompt: %s, duration: %ds, format: %s", prompt, duration, format)

	// Connections are scoped to this invocation.
	defer c.client.CloseIdleConnections()
	defer c.downloadClient.CloseIdleConnections()

	task, err := c.Compose(ctx, req)
	if err != nil {
		return "", asError(err, "music generation failed")
	}
	c.log("beatoven: composition started with task id: %s", task.TaskID)

	status, err := c.Watch(ctx, task.TaskID)
	if err != nil {
		return "", asError(err, "music generation failed")
	}
	u, ok := status.TrackURL()
	if !ok {
		return "", newError("no track URL in the completion response")
	}

	path, err := c.Download(ctx, u, outputDir, filename, req.Format)
	if err != nil {
		return "", asError(err, "music generation failed")
	}
	return path, nil
}
