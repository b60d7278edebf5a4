package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/larkwiot/shelf/internal"
	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/cache"
	"github.com/larkwiot/shelf/internal/config"
	"github.com/larkwiot/shelf/internal/cover"
	"github.com/larkwiot/shelf/internal/extractors"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/larkwiot/shelf/internal/providers"
	"github.com/larkwiot/shelf/internal/resolver"
	"github.com/larkwiot/shelf/internal/server"
	"github.com/larkwiot/shelf/internal/util"
)

type globalOptions struct {
	ConfigPath string `short:"c" long:"config" description:"filepath to configuration file" default:"./shelf.toml"`
	Version    bool   `long:"version" description:"print version"`
}

var globals globalOptions

type lookupCommand struct {
	Args struct {
		Isbns []string `positional-arg-name:"ISBN" required:"1"`
	} `positional-args:"yes"`
}

type validateCommand struct {
	Args struct {
		Isbns []string `positional-arg-name:"ISBN" required:"1"`
	} `positional-args:"yes"`
}

type scanCommand struct {
	ScanPath    string `short:"s" long:"scan" description:"directory path to scan" default:"./"`
	OutputPath  string `short:"o" long:"output" description:"filepath to write JSON output to" default:"./books.json"`
	Cache       string `long:"cache" description:"filepath to previous JSON output to skip already scanned files"`
	Threads     int    `short:"t" long:"threads" description:"number of threads to use, set to 0 to automatically determine best count" default:"0"`
	DryRun      bool   `long:"dry-run" description:"only identify ISBNs, don't query any source"`
	RetryFailed bool   `long:"retry" description:"retry failed files (must also specify --cache)"`
}

type serveCommand struct {
	Listen string `long:"listen" description:"address to listen on, overrides server.listen"`
}

type cacheCommand struct{}

// app holds what every command needs, built from the config file.
type app struct {
	conf      *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	cache     cache.Cache
	resolver  *resolver.Resolver
}

func loadConfig(path string) (*config.Config, bool, error) {
	path = util.ExpandUser(path)
	exists, err := util.PathExists(path)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return config.Default(), false, nil
	}
	conf, err := config.NewConfig(path)
	return conf, true, err
}

func setup(ctx context.Context) (*app, error) {
	conf, fromFile, err := loadConfig(globals.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := util.SetupLogger(&conf.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	if !fromFile {
		logger.Info("no config file found, using defaults", "path", globals.ConfigPath)
	}

	store, err := cache.Open(ctx, &conf.Cache)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	opts := []resolver.Option{
		resolver.WithLogger(logger),
		resolver.WithParallel(conf.Advanced.ParallelSources),
	}
	if conf.Cover.Probe {
		opts = append(opts, resolver.WithProber(cover.NewHTTPProber(conf.CoverTimeout(), conf.Http.UserAgent)))
	}

	sources := providers.NewFromConfig(conf, providers.NewHTTPClient(conf.HttpTimeout()), logger)

	return &app{
		conf:      conf,
		logger:    logger,
		logCloser: logCloser,
		cache:     store,
		resolver:  resolver.New(sources, store, opts...),
	}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", "error", err)
	}
	a.logCloser.Close()
}

func withApp(run func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return run(ctx, a)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (cmd *lookupCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		for _, raw := range cmd.Args.Isbns {
			result, err := a.resolver.Resolve(ctx, raw)
			if err != nil {
				return err
			}
			if err := printJSON(result); err != nil {
				return err
			}
		}
		return nil
	})
}

func (cmd *validateCommand) Execute([]string) error {
	for _, raw := range cmd.Args.Isbns {
		canonical := isbn.Normalize(raw)
		validation := isbn.Validate(canonical)
		err := printJSON(struct {
			Input     string         `json:"input"`
			Canonical isbn.Canonical `json:"canonical"`
			isbn.Validation
			Variants []string `json:"variants"`
		}{raw, canonical, validation, isbn.Variants(raw)})
		if err != nil {
			return err
		}
	}
	return nil
}

func (cmd *scanCommand) Execute([]string) error {
	if cmd.RetryFailed && cmd.Cache == "" {
		return fmt.Errorf("--cache must be specified if you want to retry failed files")
	}

	output, err := filepath.Abs(util.ExpandUser(cmd.OutputPath))
	if err != nil {
		return fmt.Errorf("could not get absolute output path: %w", err)
	}
	if exists, _ := util.PathExists(output); exists {
		return fmt.Errorf("output filepath %s already exists, refusing to overwrite", output)
	}

	return withApp(func(ctx context.Context, a *app) error {
		bm, err := internal.NewBookManager(a.conf, a.resolver, extractors.FromConfig(a.conf), int64(cmd.Threads), a.logger)
		if err != nil {
			return err
		}

		if len(cmd.Cache) != 0 {
			if err := bm.Import(util.ExpandUser(cmd.Cache), cmd.RetryFailed); err != nil {
				return fmt.Errorf("failed to import cache %s: %w", cmd.Cache, err)
			}
		}

		outputWriter, err := util.NewJsonStreamWriter[*book.File](output, func(bk *book.File) (util.JsonStreamWriterItem, error) {
			bkData, err := json.Marshal(bk)
			if err != nil {
				return util.JsonStreamWriterItem{}, err
			}
			return util.JsonStreamWriterItem{
				Key:  bk.Filepath,
				Data: bkData,
			}, nil
		})
		if err != nil {
			return fmt.Errorf("unable to open output path %s: %w", output, err)
		}
		defer outputWriter.Close()

		return bm.Scan(ctx, util.ExpandUser(cmd.ScanPath), cmd.DryRun, outputWriter)
	})
}

func (cmd *serveCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		listen := a.conf.Server.Listen
		if len(cmd.Listen) != 0 {
			listen = cmd.Listen
		}
		return server.New(a.resolver, a.logger).Run(ctx, listen)
	})
}

func (cmd *cacheCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app) error {
		store, ok := a.cache.(*cache.Bolt)
		if !ok {
			return fmt.Errorf("listing is only supported for the %s cache backend", config.CacheBackendBolt)
		}

		keys, err := store.Keys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			entry, found, err := store.Get(ctx, key)
			if err != nil {
				a.logger.Warn("unable to read cache entry", "isbn", string(key), "error", err)
				continue
			}
			if !found {
				continue
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", key, entry.CachedAt.Format("2006-01-02"), entry.Provenance, entry.Record.Title.OrElse("?"))
		}
		fmt.Fprintf(os.Stderr, "%d entries\n", len(keys))
		return nil
	})
}

func main() {
	parser := flags.NewParser(&globals, flags.Default)
	parser.SubcommandsOptional = true

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"lookup", "Resolve ISBNs to book metadata", "Validate each ISBN, consult the cache, then query the enabled sources in priority order.", &lookupCommand{}},
		{"validate", "Validate ISBNs", "Print the canonical form, kind and equivalent spellings of each ISBN.", &validateCommand{}},
		{"scan", "Scan a directory of e-books", "Find the ISBN printed in each document and resolve it, writing one JSON object per file.", &scanCommand{}},
		{"serve", "Serve the HTTP lookup API", "Serve ISBN validation and lookup over HTTP.", &serveCommand{}},
		{"cache", "List cached lookups", "List the entries stored in the bolt cache.", &cacheCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if globals.Version {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Fprintln(os.Stderr, "error: unable to get build info")
			os.Exit(1)
		}
		fmt.Println(info)
		return
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
}
