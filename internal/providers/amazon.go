package providers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/config"
	"github.com/larkwiot/shelf/internal/isbn"
)

// Amazon scrapes the product page of a book. It is the fallback source: the
// page layout is not an API and fields disappear without notice.
type Amazon struct {
	url       string
	userAgent string
	timeout   time.Duration
}

func NewAmazon(conf *config.SourceConfig, userAgent string, timeout time.Duration) *Amazon {
	return &Amazon{
		url:       strings.TrimRight(conf.Url, "/"),
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func (a *Amazon) Name() string {
	return "Amazon"
}

var (
	pagesPattern  = regexp.MustCompile(`(\d+)\s*pages`)
	seriesPattern = regexp.MustCompile(`Book\s+(\d+)\s+of\s+\d+\s*:?\s*(.*)`)
	bidiMarks     = strings.NewReplacer("\u200e", "", "\u200f", "", "\u00a0", " ")
)

type amazonPage struct {
	title    string
	authors  []string
	cover    string
	synopsis string
	series   string
	details  map[string]string
}

// RequestKey maps key to the ISBN-10 that product pages are keyed by.
func (a *Amazon) RequestKey(key isbn.Canonical) (isbn.Canonical, bool) {
	if len(key) == 13 {
		return isbn.Convert13To10(string(key)).Get()
	}
	return key, true
}

func (a *Amazon) FindResult(ctx context.Context, key isbn.Canonical) (book.Record, bool, error) {
	isbn10, ok := a.RequestKey(key)
	if !ok {
		return book.Record{}, false, nil
	}

	page := amazonPage{details: make(map[string]string)}
	status := 0

	c := colly.NewCollector(
		colly.UserAgent(a.userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(a.timeout)

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	c.OnHTML("#productTitle", func(e *colly.HTMLElement) {
		page.title = strings.TrimSpace(e.Text)
	})
	c.OnHTML("#bylineInfo .author a", func(e *colly.HTMLElement) {
		if name := strings.TrimSpace(e.Text); len(name) != 0 {
			page.authors = append(page.authors, name)
		}
	})
	c.OnHTML("#landingImage, #imgBlkFront", func(e *colly.HTMLElement) {
		if len(page.cover) != 0 {
			return
		}
		page.cover = e.Attr("data-old-hires")
		if len(page.cover) == 0 {
			page.cover = e.Attr("src")
		}
	})
	c.OnHTML("#bookDescription_feature_div", func(e *colly.HTMLElement) {
		page.synopsis = strings.TrimSpace(e.Text)
	})
	c.OnHTML("#seriesBulletWidget_feature_div", func(e *colly.HTMLElement) {
		page.series = strings.TrimSpace(e.Text)
	})
	c.OnHTML("#detailBullets_feature_div li", func(e *colly.HTMLElement) {
		label := cleanLabel(e.ChildText("span.a-text-bold"))
		value := strings.TrimSpace(bidiMarks.Replace(e.ChildText("span.a-list-item > span:not(.a-text-bold)")))
		if len(label) != 0 && len(value) != 0 {
			page.details[label] = value
		}
	})

	err := c.Visit(fmt.Sprintf("%s/dp/%s", a.url, isbn10))
	if status == http.StatusNotFound {
		return book.Record{}, false, nil
	}
	if status != 0 && status != http.StatusOK {
		return book.Record{}, false, &StatusError{Source: a.Name(), StatusCode: status}
	}
	if err != nil {
		return book.Record{}, false, err
	}

	if len(page.title) == 0 {
		return book.Record{}, false, nil
	}
	return page.toRecord(), true, nil
}

func cleanLabel(label string) string {
	label = bidiMarks.Replace(label)
	label = strings.TrimSpace(label)
	label = strings.TrimSuffix(label, ":")
	return strings.ToLower(strings.TrimSpace(label))
}

func (p *amazonPage) toRecord() book.Record {
	rec := book.Record{
		Title:    book.Text(p.title),
		Author:   book.Text(strings.Join(p.authors, ", ")),
		CoverURL: book.Text(p.cover),
		Synopsis: book.Text(p.synopsis),
		Language: book.Text(p.details["language"]),
		Edition:  book.Text(p.details["edition"]),
	}

	for _, label := range []string{"print length", "paperback", "hardcover"} {
		if m := pagesPattern.FindStringSubmatch(p.details[label]); m != nil {
			pages, _ := strconv.Atoi(m[1])
			rec.Pages = book.Count(pages)
			break
		}
	}

	// "Ace; 40th Anniversary edition (August 2, 2005)"
	if publisher, ok := p.details["publisher"]; ok {
		if open := strings.LastIndex(publisher, "("); open != -1 && strings.HasSuffix(publisher, ")") {
			rec.PublishedDate = book.Text(publisher[open+1 : len(publisher)-1])
			publisher = publisher[:open]
		}
		parts := strings.SplitN(publisher, ";", 2)
		rec.Publisher = book.Text(parts[0])
		if len(parts) == 2 && rec.Edition.IsAbsent() {
			rec.Edition = book.Text(parts[1])
		}
	}
	if date, ok := p.details["publication date"]; ok {
		rec.PublishedDate = book.Text(date)
	}

	if m := seriesPattern.FindStringSubmatch(p.series); m != nil {
		rec.SeriesPosition = book.Text(m[1])
		rec.Series = book.Text(m[2])
	}

	return rec
}
