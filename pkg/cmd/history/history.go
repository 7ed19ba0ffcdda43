package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/igolaizola/beatoven/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Page   int
	Size   int
	Output string
}

type row struct {
	ID       string `json:"id" csv:"id"`
	Created  string `json:"created" csv:"created"`
	Prompt   string `json:"prompt" csv:"prompt"`
	Duration int    `json:"duration" csv:"duration"`
	Format   string `json:"format" csv:"format"`
	TaskID   string `json:"task_id" csv:"task_id"`
	Status   string `json:"status" csv:"status"`
	Path     string `json:"path" csv:"path"`
	Uploaded bool   `json:"uploaded" csv:"uploaded"`
}

// Run lists recorded generations, optionally exporting them to a file.
func Run(ctx context.Context, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("history: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("history: couldn't start orm store: %w", err)
	}

	size := cfg.Size
	if size == 0 {
		size = 100
	}
	gens, err := store.ListGenerations(ctx, cfg.Page, size, "created_at desc")
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	rows := make([]*row, 0, len(gens))
	for _, g := range gens {
		rows = append(rows, &row{
			ID:       g.ID,
			Created:  g.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			Prompt:   g.Prompt,
			Duration: g.Duration,
			Format:   g.Format,
			TaskID:   g.TaskID,
			Status:   g.Status,
			Path:     g.Path,
			Uploaded: g.Uploaded,
		})
	}

	if cfg.Output == "" {
		for _, r := range rows {
			log.Printf("%s %s %q %s %s\n", r.Created, r.ID, r.Prompt, r.Status, r.Path)
		}
		log.Printf("history: %d generations\n", len(rows))
		return nil
	}

	ext := filepath.Ext(cfg.Output)
	var marshal func([]*row) ([]byte, error)
	switch ext {
	case ".json":
		marshal = func(rs []*row) ([]byte, error) {
			b, err := json.MarshalIndent(rs, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("couldn't marshal items: %w", err)
			}
			return b, nil
		}
	case ".csv":
		marshal = func(rs []*row) ([]byte, error) {
			b, err := gocsv.MarshalBytes(&rs)
			if err != nil {
				return nil, fmt.Errorf("couldn't marshal items: %w", err)
			}
			return b, nil
		}
	default:
		return fmt.Errorf("history: unsupported output format: %s", ext)
	}
	b, err := marshal(rows)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := os.WriteFile(cfg.Output, b, 0644); err != nil {
		return fmt.Errorf("history: couldn't write output file: %w", err)
	}
	log.Printf("history: %d generations written to %s\n", len(rows), cfg.Output)
	return nil
}
