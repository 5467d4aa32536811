// Package sync defines the sync command, which mirrors repositories between
// two backends (a registry or a local directory tree) either from a YAML job
// file or from a single pair of source/destination flags.
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/ruasync/ocisync/pkg/commands/internal/options"
	"github.com/ruasync/ocisync/pkg/ocisync/config"
	"github.com/ruasync/ocisync/pkg/ocisync/engine"
	"github.com/ruasync/ocisync/pkg/ocisync/progress"
	"github.com/ruasync/ocisync/pkg/xlog"
)

// FlagCategorySync is the category name for sync-specific flags.
const FlagCategorySync = "[Sync]"

// New creates a new sync Command.
func New() *Command {
	return NewCommand()
}

// NewCommand returns a command with default values.
func NewCommand() *Command {
	return &Command{
		ContainerRegistry: options.NewContainerRegistry(),
		Concurrency:       engine.DefaultMaxConcurrency,
	}
}

// Command mirrors repositories between a source and a destination backend.
type Command struct {
	*options.ContainerRegistry

	// ConfigFile points at a YAML job file (pkg/ocisync/config) describing
	// every repository to sync. When set, SourceRegistry/SourceDir and
	// DestinationRegistry/DestinationDir are ignored.
	ConfigFile string

	SourceRegistry      string
	SourceDir           string
	DestinationRegistry string
	DestinationDir      string
	Repository          string
	Tags                []string

	Concurrency int
}

// ToCLI transforms to a *cli.Command.
func (c *Command) ToCLI() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror repositories between two registries or directories",
		UsageText: `ruasync sync [OPTIONS]

# Mirror every tag of an image between two registries
$ ruasync sync --source-registry src.example.com --destination-registry dst.example.com --repository library/nginx

# Mirror one tag only
$ ruasync sync --source-registry src.example.com --destination-registry dst.example.com --repository library/nginx --tag 1.27

# Mirror a batch of repositories described in a job file
$ ruasync sync --config jobs.yaml
`,
		Flags:  c.Flags(),
		Action: c.Run,
	}
}

// Flags defines the flags related to the current command.
func (c *Command) Flags() []cli.Flag {
	local := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to a YAML job file describing repositories to sync",
			Destination: &c.ConfigFile,
			Value:       c.ConfigFile,
			Category:    FlagCategorySync,
		},
		&cli.StringFlag{
			Name:        "source-registry",
			Usage:       "source registry hostname",
			Destination: &c.SourceRegistry,
			Value:       c.SourceRegistry,
			Category:    FlagCategorySync,
		},
		&cli.StringFlag{
			Name:        "source-dir",
			Usage:       "source directory root",
			Destination: &c.SourceDir,
			Value:       c.SourceDir,
			Category:    FlagCategorySync,
		},
		&cli.StringFlag{
			Name:        "destination-registry",
			Usage:       "destination registry hostname",
			Destination: &c.DestinationRegistry,
			Value:       c.DestinationRegistry,
			Category:    FlagCategorySync,
		},
		&cli.StringFlag{
			Name:        "destination-dir",
			Usage:       "destination directory root",
			Destination: &c.DestinationDir,
			Value:       c.DestinationDir,
			Category:    FlagCategorySync,
		},
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "repository name to sync, e.g. library/nginx",
			Destination: &c.Repository,
			Value:       c.Repository,
			Category:    FlagCategorySync,
		},
		&cli.StringSliceFlag{
			Name:        "tag",
			Usage:       "tag to sync (repeatable); defaults to every tag the source reports",
			Destination: &c.Tags,
			Value:       c.Tags,
			Category:    FlagCategorySync,
		},
		&cli.IntFlag{
			Name:        "concurrency",
			Usage:       "maximum number of concurrent tasks in each fan-out (tags, index children, blobs)",
			Destination: &c.Concurrency,
			Value:       c.Concurrency,
			Category:    FlagCategorySync,
		},
	}
	return append(c.ContainerRegistry.Flags(), local...)
}

// Run is the main function for the current command.
func (c *Command) Run(ctx context.Context, cmd *cli.Command) error {
	sink := progress.NewSlogSink(xlog.Default())

	if c.ConfigFile != "" {
		return c.runConfig(ctx, sink)
	}
	return c.runAdHoc(ctx, sink)
}

func (c *Command) runConfig(ctx context.Context, sink progress.Sink) error {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return fmt.Errorf("load sync config %q: %w", c.ConfigFile, err)
	}

	resolver := &config.Resolver{
		Fsys:            afero.NewOsFs(),
		DefaultAuthFile: c.AuthFile,
	}
	source, err := resolver.NewBackend(ctx, cfg.Source)
	if err != nil {
		return fmt.Errorf("resolve source backend: %w", err)
	}
	destination, err := resolver.NewBackend(ctx, cfg.Destination)
	if err != nil {
		return fmt.Errorf("resolve destination backend: %w", err)
	}

	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = c.Concurrency
	}
	eng := engine.New(source, destination, engine.WithProgress(sink), engine.WithMaxConcurrency(concurrency))
	if err := eng.Ping(ctx); err != nil {
		return err
	}

	var failures []error
	for _, job := range cfg.Repositories {
		xlog.InfoContext(ctx, "syncing repository", "repository", job.Name, "tags", job.Tags)
		if err := eng.SyncRepo(ctx, job.Name, job.Tags); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(failures...)
}

func (c *Command) runAdHoc(ctx context.Context, sink progress.Sink) error {
	if c.Repository == "" {
		return fmt.Errorf("--repository is required unless --config is set")
	}

	resolver := &config.Resolver{
		Fsys:            afero.NewOsFs(),
		DefaultAuthFile: c.AuthFile,
	}
	source, err := resolver.NewBackend(ctx, config.Endpoint{Registry: c.SourceRegistry, Directory: c.SourceDir, Insecure: c.Insecure})
	if err != nil {
		return fmt.Errorf("resolve source backend: %w", err)
	}
	destination, err := resolver.NewBackend(ctx, config.Endpoint{Registry: c.DestinationRegistry, Directory: c.DestinationDir, Insecure: c.Insecure})
	if err != nil {
		return fmt.Errorf("resolve destination backend: %w", err)
	}

	eng := engine.New(source, destination, engine.WithProgress(sink), engine.WithMaxConcurrency(c.Concurrency))
	if err := eng.Ping(ctx); err != nil {
		return err
	}
	return eng.SyncRepo(ctx, c.Repository, c.Tags)
}
