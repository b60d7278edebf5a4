package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/config"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/samber/lo"
)

type OpenLibrary struct {
	url       string
	client    Doer
	userAgent string
}

func NewOpenLibrary(conf *config.SourceConfig, client Doer, userAgent string) *OpenLibrary {
	return &OpenLibrary{
		url:       strings.TrimRight(conf.Url, "/"),
		client:    client,
		userAgent: userAgent,
	}
}

func (o *OpenLibrary) Name() string {
	return "Open Library"
}

type openLibraryNamed struct {
	Name string `json:"name"`
}

type openLibraryBook struct {
	Title         string             `json:"title"`
	Subtitle      string             `json:"subtitle"`
	Authors       []openLibraryNamed `json:"authors"`
	NumberOfPages int                `json:"number_of_pages"`
	Cover         struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Subjects    []openLibraryNamed `json:"subjects"`
	Publishers  []openLibraryNamed `json:"publishers"`
	PublishDate string             `json:"publish_date"`
	// notes is either a string or {"type": ..., "value": ...}
	Notes    any `json:"notes"`
	Excerpts []struct {
		Text string `json:"text"`
	} `json:"excerpts"`
}

func (o *OpenLibrary) FindResult(ctx context.Context, key isbn.Canonical) (book.Record, bool, error) {
	bibkey := "ISBN:" + string(key)
	queryUrl := fmt.Sprintf("%s/api/books?bibkeys=%s&format=json&jscmd=data", o.url, url.QueryEscape(bibkey))

	var response map[string]openLibraryBook
	found, err := getJSON(ctx, o.client, o.Name(), o.userAgent, queryUrl, &response)
	if err != nil || !found {
		return book.Record{}, false, err
	}

	data, ok := response[bibkey]
	if !ok {
		return book.Record{}, false, nil
	}

	return data.toRecord(), true, nil
}

func (b openLibraryBook) toRecord() book.Record {
	title := b.Title
	if len(b.Subtitle) != 0 {
		title = fmt.Sprintf("%s: %s", b.Title, b.Subtitle)
	}

	names := func(named []openLibraryNamed) []string {
		return lo.Compact(lo.Map(named, func(n openLibraryNamed, _ int) string {
			return strings.TrimSpace(n.Name)
		}))
	}

	cover := b.Cover.Large
	if len(cover) == 0 {
		cover = b.Cover.Medium
	}
	if len(cover) == 0 {
		cover = b.Cover.Small
	}

	synopsis := formatNotes(b.Notes)
	if len(synopsis) == 0 && len(b.Excerpts) > 0 {
		synopsis = b.Excerpts[0].Text
	}

	return book.Record{
		Title:         book.Text(title),
		Author:        book.Text(strings.Join(names(b.Authors), ", ")),
		Pages:         book.Count(b.NumberOfPages),
		CoverURL:      book.Text(cover),
		Genre:         book.Text(firstOrEmpty(names(b.Subjects))),
		Synopsis:      book.Text(synopsis),
		Publisher:     book.Text(firstOrEmpty(names(b.Publishers))),
		PublishedDate: book.Text(b.PublishDate),
	}
}

func formatNotes(notes any) string {
	switch n := notes.(type) {
	case string:
		return n
	case map[string]any:
		if value, ok := n["value"].(string); ok {
			return value
		}
	}
	return ""
}

func firstOrEmpty(values []string) string {
	first, _ := lo.First(values)
	return first
}
