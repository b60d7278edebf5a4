// Package resolver turns a raw ISBN string into merged book metadata:
// validate, consult the cache, query the sources in priority order, check the
// cover and persist.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/cache"
	"github.com/larkwiot/shelf/internal/cover"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/larkwiot/shelf/internal/providers"
)

type Outcome int

const (
	Found Outcome = iota
	NotFound
	InvalidISBN
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case InvalidISBN:
		return "invalid_isbn"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

const MessageNotFound = "ISBN not found in any source, enter the details manually"

type Result struct {
	Outcome   Outcome        `json:"outcome"`
	ISBN      isbn.Canonical `json:"isbn"`
	Record    book.Record    `json:"record"`
	Reason    string         `json:"reason,omitempty"`
	FromCache bool           `json:"from_cache"`
	Message   string         `json:"message"`
}

type Resolver struct {
	providers []providers.Provider
	cache     cache.Cache
	prober    cover.Prober
	logger    *slog.Logger
	parallel  bool
	now       func() time.Time
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithProber enables the cover check. Without a prober covers are kept as
// the sources report them.
func WithProber(prober cover.Prober) Option {
	return func(r *Resolver) {
		r.prober = prober
	}
}

// WithParallel queries every source at once. Results are still merged in
// priority order.
func WithParallel(parallel bool) Option {
	return func(r *Resolver) {
		r.parallel = parallel
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// New builds a Resolver over sources, given in priority order.
func New(sources []providers.Provider, c cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		providers: sources,
		cache:     c,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.NewMemory()
	}
	return r
}

// Resolve runs one lookup. Expected conditions (bad input, no data) come
// back as a Result; the error is non-nil only when ctx ends first, and in
// that case nothing has been cached.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Result, error) {
	key := isbn.Normalize(raw)
	validation := isbn.Validate(key)
	if !validation.Valid {
		return Result{
			Outcome: InvalidISBN,
			ISBN:    key,
			Reason:  validation.Reason,
			Message: fmt.Sprintf("invalid ISBN: %s", validation.Reason),
		}, nil
	}

	logger := r.logger.With("isbn", string(key))

	entry, hit, err := r.cache.Get(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		logger.Warn("cache read failed, treating as miss", "error", err)
	}
	if hit {
		return Result{
			Outcome:   Found,
			ISBN:      key,
			Record:    entry.Record,
			FromCache: true,
			Message:   fmt.Sprintf("Data loaded from %s (cached)", entry.Provenance),
		}, nil
	}

	record, err := r.query(ctx, logger, key)
	if err != nil {
		return Result{}, err
	}
	if record.IsEmpty() {
		return Result{Outcome: NotFound, ISBN: key, Message: MessageNotFound}, nil
	}

	if err := r.checkCover(ctx, logger, &record); err != nil {
		return Result{}, err
	}

	err = r.cache.Put(ctx, key, book.Entry{
		Record:     record.Clone(),
		CachedAt:   r.now().UTC(),
		Provenance: record.Provenance(),
	})
	if err != nil {
		logger.Warn("cache write failed", "error", err)
	}

	return Result{
		Outcome: Found,
		ISBN:    key,
		Record:  record,
		Message: fmt.Sprintf("Data loaded from %s", record.Provenance()),
	}, nil
}

type sourceResult struct {
	record book.Record
	found  bool
	err    error
}

// lookup skips sources that have already disabled themselves.
func lookup(ctx context.Context, p providers.Provider, key isbn.Canonical) sourceResult {
	if p.Disabled() {
		return sourceResult{err: providers.ErrDisabled}
	}
	rec, found, err := p.Lookup(ctx, key)
	return sourceResult{record: rec, found: found, err: err}
}

func (r *Resolver) query(ctx context.Context, logger *slog.Logger, key isbn.Canonical) (book.Record, error) {
	results := make([]sourceResult, len(r.providers))

	if r.parallel {
		var wait sync.WaitGroup
		for i, p := range r.providers {
			wait.Add(1)
			go func() {
				defer wait.Done()
				results[i] = lookup(ctx, p, key)
			}()
		}
		wait.Wait()
	} else {
		for i, p := range r.providers {
			if err := ctx.Err(); err != nil {
				return book.Record{}, err
			}
			results[i] = lookup(ctx, p, key)
		}
	}

	if err := ctx.Err(); err != nil {
		return book.Record{}, err
	}

	var merged book.Record
	for i, res := range results {
		name := r.providers[i].Name()
		switch {
		case errors.Is(res.err, providers.ErrDisabled):
			logger.Debug("skipping disabled source", "source", name)
		case res.err != nil:
			logger.Warn("source unavailable", "source", name, "error", res.err)
		case !res.found:
			logger.Debug("no match in source", "source", name)
		default:
			merged.Merge(res.record, name)
		}
	}
	return merged, nil
}

func (r *Resolver) checkCover(ctx context.Context, logger *slog.Logger, record *book.Record) error {
	url, ok := record.CoverURL.Get()
	if !ok {
		return nil
	}
	best := cover.BestQuality(url)
	if r.prober == nil {
		record.CoverURL = book.Text(best)
		return nil
	}

	if r.prober.Probe(ctx, best) {
		record.CoverURL = book.Text(best)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if best != url && r.prober.Probe(ctx, url) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("cover image unreachable, clearing", "url", url)
	record.CoverURL = book.Text("")
	return nil
}
