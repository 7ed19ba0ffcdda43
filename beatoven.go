package beatoven

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	api "github.com/igolaizola/beatoven/pkg/beatoven"
)

type Config struct {
	APIKey          string
	BaseURL         string
	Proxy           string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	PollInterval    time.Duration
	MaxPolls        int
	Debug           bool
}

// GenerateMusic generates a track from a text prompt and saves it locally.
func GenerateMusic(ctx context.Context, cfg *Config, prompt string, duration int, format, output, filename string) (string, error) {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return "", fmt.Errorf("invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	client := api.New(&api.Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Client:          httpClient,
		Timeout:         cfg.Timeout,
		DownloadTimeout: cfg.DownloadTimeout,
		PollInterval:    cfg.PollInterval,
		MaxPolls:        cfg.MaxPolls,
		Debug:           cfg.Debug,
	})
	path, err := client.GenerateMusic(ctx, prompt, duration, api.Format(format), output, filename)
	if err != nil {
		return "", err
	}
	log.Println("track saved to:", path)
	return path, nil
}
