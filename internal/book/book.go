package book

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Record is the metadata known about one book. A source adapter produces a
// sparse Record; the resolver folds those into a single merged Record.
type Record struct {
	Title          mo.Option[string] `json:"title"`
	Author         mo.Option[string] `json:"author"`
	Pages          mo.Option[int]    `json:"pages"`
	CoverURL       mo.Option[string] `json:"cover_url"`
	Genre          mo.Option[string] `json:"genre"`
	Language       mo.Option[string] `json:"language"`
	Edition        mo.Option[string] `json:"edition"`
	Synopsis       mo.Option[string] `json:"synopsis"`
	Series         mo.Option[string] `json:"series"`
	SeriesPosition mo.Option[string] `json:"series_position"`
	Publisher      mo.Option[string] `json:"publisher"`
	PublishedDate  mo.Option[string] `json:"published_date"`
	Sources        []string          `json:"sources"`
}

// Entry is what the lookup cache stores per canonical ISBN.
type Entry struct {
	Record     Record    `json:"record"`
	CachedAt   time.Time `json:"cached_at"`
	Provenance string    `json:"provenance"`
}

// Text trims s and treats a blank result as absent.
func Text(s string) mo.Option[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return mo.None[string]()
	}
	return mo.Some(s)
}

// Count treats non-positive counts as absent.
func Count(n int) mo.Option[int] {
	if n <= 0 {
		return mo.None[int]()
	}
	return mo.Some(n)
}

// fill sets dst from src only when dst is still absent.
func fill[T any](dst *mo.Option[T], src mo.Option[T]) bool {
	if dst.IsPresent() || src.IsAbsent() {
		return false
	}
	*dst = src
	return true
}

// Merge folds partial into r. A field already populated in r is never
// overwritten, so merging sources in priority order makes the highest
// priority source win each field. When partial contributed anything, source
// is appended to the provenance.
func (r *Record) Merge(partial Record, source string) bool {
	contributed := false
	for _, filled := range []bool{
		fill(&r.Title, partial.Title),
		fill(&r.Author, partial.Author),
		fill(&r.Pages, partial.Pages),
		fill(&r.CoverURL, partial.CoverURL),
		fill(&r.Genre, partial.Genre),
		fill(&r.Language, partial.Language),
		fill(&r.Edition, partial.Edition),
		fill(&r.Synopsis, partial.Synopsis),
		fill(&r.Series, partial.Series),
		fill(&r.SeriesPosition, partial.SeriesPosition),
		fill(&r.Publisher, partial.Publisher),
		fill(&r.PublishedDate, partial.PublishedDate),
	} {
		contributed = contributed || filled
	}

	if contributed && source != "" && !slices.Contains(r.Sources, source) {
		r.Sources = append(r.Sources, source)
	}
	return contributed
}

func (r Record) IsEmpty() bool {
	return r.Title.IsAbsent() &&
		r.Author.IsAbsent() &&
		r.Pages.IsAbsent() &&
		r.CoverURL.IsAbsent() &&
		r.Genre.IsAbsent() &&
		r.Language.IsAbsent() &&
		r.Edition.IsAbsent() &&
		r.Synopsis.IsAbsent() &&
		r.Series.IsAbsent() &&
		r.SeriesPosition.IsAbsent() &&
		r.Publisher.IsAbsent() &&
		r.PublishedDate.IsAbsent()
}

func (r Record) Provenance() string {
	return strings.Join(r.Sources, ", ")
}

func (r Record) Clone() Record {
	r.Sources = slices.Clone(r.Sources)
	return r
}

func (r Record) String() string {
	return "{title: " + r.Title.OrElse("?") + ", author: " + r.Author.OrElse("?") + ", sources: [" + r.Provenance() + "]}"
}

// File is the scan result for one document on disk.
type File struct {
	Filepath     string   `json:"filepath"`
	Extractor    string   `json:"extractor,omitempty"`
	Candidates   []string `json:"candidates,omitempty"`
	Isbn         string   `json:"isbn,omitempty"`
	Record       *Record  `json:"record,omitempty"`
	ErrorMessage string   `json:"error,omitempty"`
}

func (f File) Failed() bool {
	return len(f.ErrorMessage) != 0
}
