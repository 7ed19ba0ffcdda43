package generate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/igolaizola/beatoven/pkg/beatoven"
	"github.com/igolaizola/beatoven/pkg/filestore"
	"github.com/igolaizola/beatoven/pkg/openai"
	"github.com/igolaizola/beatoven/pkg/storage"
	"github.com/oklog/ulid/v2"
)

type Config struct {
	Debug bool
	Proxy string

	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	PollInterval    time.Duration
	MaxPolls        int

	Prompt   string
	Duration int
	Format   string
	Output   string
	Filename string

	// Optional generation history database.
	DBType string
	DBConn string

	// Optional archive backend for the downloaded track.
	FSType string
	FSConn string

	// Optional prompt enhancement.
	Enhance     bool
	OpenAIKey   string
	OpenAIModel string
}

// Run launches the music generation process.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("generate: process started")
	defer log.Println("generate: process ended")

	debug := func(format string, args ...interface{}) {
		if !cfg.Debug {
			return
		}
		format += "\n"
		log.Printf(format, args...)
	}

	if cfg.Prompt == "" {
		return errors.New("generate: prompt is required")
	}
	if cfg.APIKey == "" {
		return errors.New("generate: api key is required")
	}

	var store *storage.Store
	if cfg.DBType != "" {
		candidate, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("generate: couldn't create orm store: %w", err)
		}
		if err := candidate.Start(ctx); err != nil {
			return fmt.Errorf("generate: couldn't start orm store: %w", err)
		}
		store = candidate
	}

	var fileStore *filestore.Store
	if cfg.FSType != "" {
		candidate, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Proxy, cfg.Debug, store)
		if err != nil {
			return fmt.Errorf("generate: couldn't create file storage: %w", err)
		}
		fileStore = candidate
	}

	prompt := cfg.Prompt
	if cfg.Enhance {
		openaiClient := openai.New(&openai.Config{
			Debug: cfg.Debug,
			Token: cfg.OpenAIKey,
			Model: cfg.OpenAIModel,
		})
		candidate, err := openaiClient.Enhance(ctx, prompt)
		if err != nil {
			return fmt.Errorf("generate: couldn't enhance prompt: %w", err)
		}
		log.Println("generate: enhanced prompt:", candidate)
		prompt = candidate
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	client := beatoven.New(&beatoven.Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Client:          httpClient,
		Timeout:         cfg.Timeout,
		DownloadTimeout: cfg.DownloadTimeout,
		PollInterval:    cfg.PollInterval,
		MaxPolls:        cfg.MaxPolls,
		OutputDir:       cfg.Output,
		Debug:           cfg.Debug,
	})

	req, err := beatoven.NewTrackRequest(prompt, cfg.Duration, beatoven.Format(cfg.Format))
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	record := &storage.Generation{
		ID:       ulid.Make().String(),
		Prompt:   prompt,
		Duration: req.Duration,
		Format:   string(req.Format),
	}
	save := func() {
		if store == nil {
			return
		}
		if err := store.SetGeneration(ctx, record); err != nil {
			log.Printf("generate: %v\n", err)
		}
	}

	// Print time stats
	start := time.Now()
	defer func() {
		log.Printf("generate: total time %s\n", time.Since(start))
	}()

	task, err := client.Compose(ctx, req)
	if err != nil {
		record.Status = beatoven.StatusFailed
		save()
		return fmt.Errorf("generate: %w", err)
	}
	debug("generate: composition started with task id %s", task.TaskID)
	record.TaskID = task.TaskID
	record.Status = beatoven.StatusComposing
	save()

	status, err := client.Watch(ctx, task.TaskID)
	if err != nil {
		record.Status = beatoven.StatusFailed
		save()
		return fmt.Errorf("generate: %w", err)
	}
	record.Status = status.Status
	save()

	u, ok := status.TrackURL()
	if !ok {
		return fmt.Errorf("generate: no track URL in completion response for task %s", task.TaskID)
	}
	record.TrackURL = u

	path, err := client.Download(ctx, u, cfg.Output, cfg.Filename, req.Format)
	if err != nil {
		save()
		return fmt.Errorf("generate: %w", err)
	}
	record.Path = path
	save()

	if fileStore != nil {
		if err := fileStore.SetTrack(ctx, path, record.ID, string(req.Format)); err != nil {
			return fmt.Errorf("generate: couldn't archive track: %w", err)
		}
		record.Uploaded = true
		save()
	}

	log.Println("generate: track saved to:", path)
	return nil
}
