package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/isbn"
	"golang.org/x/time/rate"
)

// GenericImpl is a single-source adapter: one request for one key.
type GenericImpl interface {
	Name() string
	FindResult(ctx context.Context, key isbn.Canonical) (book.Record, bool, error)
}

// RequestKeyer is implemented by sources that answer several spellings of
// an ISBN with the same request. RequestKey reports the key actually sent, or
// false when the source cannot look the spelling up at all.
type RequestKeyer interface {
	RequestKey(key isbn.Canonical) (isbn.Canonical, bool)
}

// Generic adds rate limiting, variant fallback and rate-limit self-disabling
// on top of a GenericImpl.
type Generic struct {
	GenericImpl

	limiter  *rate.Limiter
	disabled atomic.Bool
	logger   *slog.Logger
}

func NewGeneric(impl GenericImpl, interval time.Duration) *Generic {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Generic{
		GenericImpl: impl,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      slog.Default(),
	}
}

func (g *Generic) WithLogger(logger *slog.Logger) *Generic {
	g.logger = logger
	return g
}

// Lookup tries the digit-only spellings of key in order (the key itself,
// then the ISBN-13 form of an ISBN-10) and stops at the first match or error.
// Each distinct request key is sent at most once.
func (g *Generic) Lookup(ctx context.Context, key isbn.Canonical) (book.Record, bool, error) {
	tried := make(map[isbn.Canonical]bool, 2)
	for _, variant := range isbn.DigitVariants(string(key)) {
		if keyer, ok := g.GenericImpl.(RequestKeyer); ok {
			requestKey, supported := keyer.RequestKey(variant)
			if !supported {
				continue
			}
			variant = requestKey
		}
		if tried[variant] {
			continue
		}
		tried[variant] = true

		if g.disabled.Load() {
			return book.Record{}, false, fmt.Errorf("%s: %w, probably due to rate limit", g.Name(), ErrDisabled)
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return book.Record{}, false, err
		}

		result, found, err := g.FindResult(ctx, variant)
		if statusCode(err) == http.StatusTooManyRequests {
			g.disabled.Store(true)
			g.logger.Error("provider rate limit exceeded, self-disabling provider", "provider", g.Name())
			return book.Record{}, false, err
		}
		if err != nil {
			return book.Record{}, false, err
		}
		if found && !result.IsEmpty() {
			return result, true, nil
		}
	}

	return book.Record{}, false, nil
}

func (g *Generic) Disabled() bool {
	return g.disabled.Load()
}
