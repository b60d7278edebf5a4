package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/config"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/samber/lo"
)

type Google struct {
	url       string
	client    Doer
	userAgent string
}

func NewGoogle(conf *config.SourceConfig, client Doer, userAgent string) *Google {
	return &Google{
		url:       conf.Url,
		client:    client,
		userAgent: userAgent,
	}
}

func (g *Google) Name() string {
	return "Google Books"
}

type googleIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type googleVolumeInfo struct {
	Title               string             `json:"title"`
	Subtitle            string             `json:"subtitle"`
	Authors             []string           `json:"authors"`
	Publisher           string             `json:"publisher"`
	PublishedDate       string             `json:"publishedDate"`
	Description         string             `json:"description"`
	IndustryIdentifiers []googleIdentifier `json:"industryIdentifiers"`
	PageCount           int                `json:"pageCount"`
	Categories          []string           `json:"categories"`
	Language            string             `json:"language"`
	ImageLinks          struct {
		SmallThumbnail string `json:"smallThumbnail"`
		Thumbnail      string `json:"thumbnail"`
	} `json:"imageLinks"`
}

type googleItem struct {
	VolumeInfo googleVolumeInfo `json:"volumeInfo"`
}

type googleResponse struct {
	TotalItems int          `json:"totalItems"`
	Items      []googleItem `json:"items"`
}

func (g *Google) FindResult(ctx context.Context, key isbn.Canonical) (book.Record, bool, error) {
	queryUrl := fmt.Sprintf("%s?q=isbn:%s", g.url, key)

	var result googleResponse
	found, err := getJSON(ctx, g.client, g.Name(), g.userAgent, queryUrl, &result)
	if err != nil || !found {
		return book.Record{}, false, err
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return book.Record{}, false, nil
	}

	return bestItem(result.Items, key).VolumeInfo.toRecord(), true, nil
}

// bestItem prefers the volume that lists key among its identifiers.
func bestItem(items []googleItem, key isbn.Canonical) googleItem {
	match, ok := lo.Find(items, func(item googleItem) bool {
		return lo.ContainsBy(item.VolumeInfo.IndustryIdentifiers, func(id googleIdentifier) bool {
			return isbn.Normalize(id.Identifier) == key
		})
	})
	if ok {
		return match
	}
	return items[0]
}

func (v googleVolumeInfo) toRecord() book.Record {
	title := v.Title
	if len(v.Subtitle) != 0 {
		title = fmt.Sprintf("%s: %s", v.Title, v.Subtitle)
	}

	cover := v.ImageLinks.Thumbnail
	if len(cover) == 0 {
		cover = v.ImageLinks.SmallThumbnail
	}
	cover = strings.Replace(cover, "http:", "https:", 1)

	return book.Record{
		Title:         book.Text(title),
		Author:        book.Text(strings.Join(lo.Compact(v.Authors), ", ")),
		Pages:         book.Count(v.PageCount),
		CoverURL:      book.Text(cover),
		Genre:         book.Text(firstOrEmpty(v.Categories)),
		Language:      book.Text(v.Language),
		Synopsis:      book.Text(v.Description),
		Publisher:     book.Text(v.Publisher),
		PublishedDate: book.Text(v.PublishedDate),
	}
}
