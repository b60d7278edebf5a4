package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/config"
	"github.com/larkwiot/shelf/internal/extractors"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/larkwiot/shelf/internal/pipeline"
	"github.com/larkwiot/shelf/internal/resolver"
	"github.com/larkwiot/shelf/internal/util"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
)

var acceptedFileTypes = []string{
	".pdf",
	".epub",
	".mobi",
	".chm",
	".rst",
	".txt",
}

type Resolver interface {
	Resolve(ctx context.Context, raw string) (resolver.Result, error)
}

// BookManager scans a directory of documents, finds the ISBNs printed in
// them and resolves each document to book metadata.
type BookManager struct {
	resolver      Resolver
	extractors    []extractors.Extractor
	maxCharacters uint
	threads       int64
	logger        *slog.Logger
	progressOut   io.Writer

	bookStateLock sync.Mutex
	books         map[string]book.File
	output        util.ObjectWriter[*book.File]
	pb            *progressbar.ProgressBar
}

func NewBookManager(conf *config.Config, r Resolver, exts []extractors.Extractor, threads int64, logger *slog.Logger) (*BookManager, error) {
	if len(exts) == 0 {
		return nil, fmt.Errorf("at least one extractor must be enabled")
	}
	if threads <= 0 {
		threads = int64(runtime.NumCPU() * 2)
	}
	if threads > 2000 {
		threads = 2000
	}

	return &BookManager{
		resolver:      r,
		extractors:    exts,
		maxCharacters: conf.Advanced.MaxCharactersToSearchForIsbn,
		threads:       threads,
		logger:        logger,
		progressOut:   os.Stderr,
		books:         make(map[string]book.File),
	}, nil
}

func (bm *BookManager) SetProgressOutput(w io.Writer) {
	bm.progressOut = w
}

// Import loads a previous scan output so its files are skipped. With retry,
// files that failed last time are scanned again.
func (bm *BookManager) Import(outputPath string, retry bool) error {
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return err
	}

	previous := make(map[string]book.File)
	if err := json.Unmarshal(data, &previous); err != nil {
		return fmt.Errorf("unable to decode previous output %s: %w", outputPath, err)
	}

	bm.bookStateLock.Lock()
	defer bm.bookStateLock.Unlock()
	for path, bk := range previous {
		if retry && bk.Failed() {
			continue
		}
		bm.books[path] = bk
	}
	bm.logger.Info("loaded previous scan", "entries", len(bm.books), "path", outputPath)
	return nil
}

func (bm *BookManager) Books() map[string]book.File {
	bm.bookStateLock.Lock()
	defer bm.bookStateLock.Unlock()
	return lo.Assign(bm.books)
}

func (bm *BookManager) isBookProcessed(filePath string) bool {
	bm.bookStateLock.Lock()
	defer bm.bookStateLock.Unlock()
	_, isProcessed := bm.books[filePath]
	return isProcessed
}

func (bm *BookManager) finishBook(bk *book.File) {
	bm.bookStateLock.Lock()
	if _, done := bm.books[bk.Filepath]; done {
		bm.bookStateLock.Unlock()
		return
	}
	bm.books[bk.Filepath] = *bk
	bm.bookStateLock.Unlock()

	if bm.pb != nil {
		bm.pb.Add(1)
	}
	bm.output.WriteObject(bk)
}

func (bm *BookManager) Scan(ctx context.Context, scanPath string, dryRun bool, output util.ObjectWriter[*book.File]) error {
	scanPath, err := filepath.Abs(scanPath)
	if err != nil {
		return fmt.Errorf("could not get absolute scan path: %w", err)
	}

	bm.logger.Info("preparing to scan", "path", scanPath, "threads", bm.threads, "dry_run", dryRun)

	bm.output = output
	// write anything imported back out so the new output is complete
	for _, bk := range bm.Books() {
		output.WriteObject(&bk)
	}

	bm.pb = progressbar.NewOptions(
		-1,
		progressbar.OptionSetWriter(bm.progressOut),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetDescription("scanning books"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowIts(),
	)
	bm.pb.Set(len(bm.Books()))
	defer func() {
		bm.pb.Close()
		bm.pb = nil
	}()

	p := pipeline.NewPipeline(bm.threads)
	p.AppendStage("extracting", func(i any) (any, error) {
		return bm.identify(ctx, i.(*book.File))
	})
	if !dryRun {
		p.AppendStage("resolving", func(i any) (any, error) {
			return bm.resolve(ctx, i.(*book.File))
		})
	}
	p.CollectorStage(func(i any) {
		bm.finishBook(i.(*book.File))
	})
	pb := bm.pb
	p.OnStatus(func(status string) {
		pb.Describe(status)
	})

	err = p.Run(func(i any, err error) {
		bk := i.(*book.File)
		if err == nil {
			err = errors.New("no result")
		}
		bk.ErrorMessage = err.Error()
		bm.finishBook(bk)
	})
	if err != nil {
		return err
	}

	walkErr := filepath.WalkDir(scanPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			bm.logger.Warn("unable to read path", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !lo.Contains(acceptedFileTypes, strings.ToLower(filepath.Ext(d.Name()))) {
			return nil
		}
		if bm.isBookProcessed(path) {
			return nil
		}

		p.Frontend <- &book.File{Filepath: path}
		return nil
	})

	p.Close()

	if walkErr != nil {
		return fmt.Errorf("failed to scan %s: %w", scanPath, walkErr)
	}
	bm.logger.Info("scan complete", "files", len(bm.Books()), "failed", p.Failed())
	return nil
}

func (bm *BookManager) identify(ctx context.Context, bk *book.File) (*book.File, error) {
	errs := make([]error, 0)
	for _, extractor := range bm.extractors {
		if !extractor.Accepts(bk.Filepath) {
			continue
		}

		text, err := extractor.ExtractText(ctx, bk.Filepath, bm.maxCharacters)
		if err != nil {
			errs = append(errs, fmt.Errorf("extractor %s failed: %w", extractor.Name(), err))
			continue
		}

		candidates := isbn.Identify(text)
		if len(candidates) == 0 {
			errs = append(errs, fmt.Errorf("extractor %s found no ISBN", extractor.Name()))
			continue
		}

		bk.Extractor = extractor.Name()
		bk.Candidates = lo.Map(candidates, func(c isbn.Canonical, _ int) string {
			return string(c)
		})
		return bk, nil
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("no extractor accepts %s", filepath.Ext(bk.Filepath))
	}
	return nil, errors.Join(errs...)
}

func (bm *BookManager) resolve(ctx context.Context, bk *book.File) (*book.File, error) {
	for _, candidate := range bk.Candidates {
		result, err := bm.resolver.Resolve(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if result.Outcome == resolver.Found {
			record := result.Record
			bk.Isbn = string(result.ISBN)
			bk.Record = &record
			return bk, nil
		}
	}
	return nil, fmt.Errorf("none of the %d identified ISBNs were found in any source", len(bk.Candidates))
}
