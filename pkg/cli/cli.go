package cli

import (
	"context"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/beatoven/pkg/beatoven"
	"github.com/igolaizola/beatoven/pkg/cmd/generate"
	"github.com/igolaizola/beatoven/pkg/cmd/history"
	"github.com/igolaizola/beatoven/pkg/cmd/migrate"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("beatoven", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "beatoven [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newGenerateCommand(),
			newComposeCommand(),
			newStatusCommand(),
			newDownloadCommand(),
			newHistoryCommand(),
			newMigrateCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "beatoven version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix("BEATOVEN"),
	}
}

func clientFlags(fs *flag.FlagSet, cfg *beatoven.Config) {
	fs.StringVar(&cfg.APIKey, "api-key", "", "beatoven.ai api key")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "beatoven.ai api url")
	fs.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "api request timeout")
	fs.DurationVar(&cfg.DownloadTimeout, "download-timeout", 60*time.Second, "track download timeout")
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
}

func newGenerateCommand() *ffcli.Command {
	cmd := "generate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &generate.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy")

	fs.StringVar(&cfg.APIKey, "api-key", "", "beatoven.ai api key")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "beatoven.ai api url")
	fs.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "api request timeout")
	fs.DurationVar(&cfg.DownloadTimeout, "download-timeout", 60*time.Second, "track download timeout")
	fs.DurationVar(&cfg.PollInterval, "interval", 10*time.Second, "status polling interval")
	fs.IntVar(&cfg.MaxPolls, "max-polls", 0, "maximum status polls, 0 for unlimited")

	fs.StringVar(&cfg.Prompt, "prompt", "", "text description of the track")
	fs.IntVar(&cfg.Duration, "duration", 0, "track duration in seconds (30-600)")
	fs.StringVar(&cfg.Format, "format", "", "audio format (mp3, wav, ogg)")
	fs.StringVar(&cfg.Output, "output", "", "output directory")
	fs.StringVar(&cfg.Filename, "filename", "", "output filename without extension")

	fs.StringVar(&cfg.DBType, "db-type", "", "db type to record generations (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "", "file storage type to archive tracks (local, s3, telegram)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "file storage connection string")

	fs.BoolVar(&cfg.Enhance, "enhance", false, "enhance the prompt with openai before composing")
	fs.StringVar(&cfg.OpenAIKey, "openai-key", "", "openai api key")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", "", "openai model")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("beatoven %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "generate a track from a text prompt",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return generate.Run(ctx, cfg)
		},
	}
}

func newComposeCommand() *ffcli.Command {
	cmd := "compose"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &beatoven.Config{}
	clientFlags(fs, cfg)

	var prompt, format string
	var duration int
	fs.StringVar(&prompt, "prompt", "", "text description of the track")
	fs.IntVar(&duration, "duration", 0, "track duration in seconds (30-600)")
	fs.StringVar(&format, "format", "", "audio format (mp3, wav, ogg)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("beatoven %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "submit a composition request and print the task id",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			req, err := beatoven.NewTrackRequest(prompt, duration, beatoven.Format(format))
			if err != nil {
				return err
			}
			client := beatoven.New(cfg)
			task, err := client.Compose(ctx, req)
			if err != nil {
				return err
			}
			fmt.Println(task.TaskID)
			return nil
		},
	}
}

func newStatusCommand() *ffcli.Command {
	cmd := "status"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &beatoven.Config{}
	clientFlags(fs, cfg)
	fs.DurationVar(&cfg.PollInterval, "interval", 10*time.Second, "status polling interval")
	fs.IntVar(&cfg.MaxPolls, "max-polls", 0, "maximum status polls, 0 for unlimited")

	var task string
	var watch bool
	fs.StringVar(&task, "task", "", "task id")
	fs.BoolVar(&watch, "watch", false, "poll until the task reaches a terminal state")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("beatoven %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "check the status of a composition task",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if task == "" {
				return fmt.Errorf("task id is required")
			}
			client := beatoven.New(cfg)
			var status *beatoven.TrackStatus
			var err error
			if watch {
				status, err = client.Watch(ctx, task)
			} else {
				status, err = client.TaskStatus(ctx, task)
			}
			if err != nil {
				return err
			}
			fmt.Println("status:", status.Status)
			if u, ok := status.TrackURL(); ok {
				fmt.Println("track url:", u)
			}
			return nil
		},
	}
}

func newDownloadCommand() *ffcli.Command {
	cmd := "download"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &beatoven.Config{}
	clientFlags(fs, cfg)

	var trackURL, output, filename, format string
	fs.StringVar(&trackURL, "url", "", "track url")
	fs.StringVar(&output, "output", "", "output directory")
	fs.StringVar(&filename, "filename", "", "output filename without extension")
	fs.StringVar(&format, "format", "mp3", "audio format (mp3, wav, ogg)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("beatoven %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "download a generated track",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if trackURL == "" || !strings.HasPrefix(trackURL, "http") {
				return fmt.Errorf("a track url is required")
			}
			client := beatoven.New(cfg)
			path, err := client.Download(ctx, trackURL, output, filename, beatoven.Format(format))
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}

func newHistoryCommand() *ffcli.Command {
	cmd := "history"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &history.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.IntVar(&cfg.Page, "page", 1, "page number")
	fs.IntVar(&cfg.Size, "size", 100, "page size")
	fs.StringVar(&cfg.Output, "output", "", "export file (.csv or .json), prints to log if empty")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("beatoven %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "list recorded generations",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return history.Run(ctx, cfg)
		},
	}
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("beatoven %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "migrate the database schema",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}
