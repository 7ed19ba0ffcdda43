package beatoven

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://public-api.beatoven.ai/api/v1"

type Client struct {
	client          *http.Client
	downloadClient  *http.Client
	base            string
	key             string
	pollInterval    time.Duration
	maxPolls        int
	defaultDuration int
	defaultFormat   Format
	outputDir       string
	debug           bool
}

type Config struct {
	APIKey          string
	BaseURL         string
	Client          *http.Client
	Timeout         time.Duration
	DownloadTimeout time.Duration
	PollInterval    time.Duration
	// MaxPolls bounds the watch loop. Zero polls forever.
	MaxPolls        int
	DefaultDuration int
	DefaultFormat   Format
	OutputDir       string
	Debug           bool
}

func New(cfg *Config) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: timeout,
		}
	}
	downloadTimeout := cfg.DownloadTimeout
	if downloadTimeout == 0 {
		downloadTimeout = 60 * time.Second
	}
	downloadClient := &http.Client{
		Timeout:   downloadTimeout,
		Transport: client.Transport,
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 10 * time.Second
	}
	duration := cfg.DefaultDuration
	if duration == 0 {
		duration = defaultDuration
	}
	format := cfg.DefaultFormat
	if format == "" {
		format = defaultFormat
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	return &Client{
		client:          client,
		downloadClient:  downloadClient,
		base:            base,
		key:             cfg.APIKey,
		pollInterval:    pollInterval,
		maxPolls:        cfg.MaxPolls,
		defaultDuration: duration,
		defaultFormat:   format,
		outputDir:       outputDir,
		debug:           cfg.Debug,
	}
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// do executes a single request and normalizes every failure into *Error.
// All three operations route through here, so callers see exactly one error
// shape regardless of the underlying cause.
//
// Relative paths are resolved against the API base and carry the bearer
// token. Absolute URLs (track downloads) are requested as-is, without
// authentication and with the download timeout.
func (c *Client) do(ctx context.Context, method, path string, in, out any) ([]byte, error) {
	var body []byte
	var reqBody io.Reader
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return nil, wrapError(err, "couldn't marshal request body")
		}
		reqBody = bytes.NewReader(body)
	}
	c.log("beatoven: do %s %s %s", method, path, string(body))

	u := fmt.Sprintf("%s/%s", c.base, path)
	client := c.client
	auth := true
	if strings.HasPrefix(path, "http") {
		u = path
		client = c.downloadClient
		auth = false
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, wrapError(err, "couldn't create request")
	}
	if auth {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.key))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, wrapError(err, "couldn't %s %s", method, u)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(err, "couldn't read response body")
	}
	c.log("beatoven: response %s %s %d %s", method, path, resp.StatusCode, string(respBody))
	if resp.StatusCode != http.StatusOK {
		return nil, newError("%s %s returned %d (%s)", method, u, resp.StatusCode, truncate(string(respBody)))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, wrapError(err, "couldn't unmarshal response body (%T)", out)
		}
	}
	return respBody, nil
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
