package extractors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/larkwiot/shelf/internal/config"
)

// Extractor pulls the leading text out of a document so it can be searched
// for ISBNs.
type Extractor interface {
	Name() string
	Accepts(path string) bool
	ExtractText(ctx context.Context, path string, maxCharacters uint) (string, error)
}

// FromConfig returns the extractors in the order they should be tried.
func FromConfig(conf *config.Config) []Extractor {
	extractors := []Extractor{PlainText{}}
	if conf.Tika.Enable {
		extractors = append(extractors, NewTikaServer(&conf.Tika))
	}
	return extractors
}

var plainTextTypes = []string{".txt", ".rst"}

// PlainText reads text files directly.
type PlainText struct{}

func (PlainText) Name() string {
	return "PlainText"
}

func (PlainText) Accepts(path string) bool {
	return slices.Contains(plainTextTypes, strings.ToLower(filepath.Ext(path)))
}

func (PlainText) ExtractText(_ context.Context, path string, maxCharacters uint) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("unable to open file %s: %w", path, err)
	}
	defer fh.Close()
	return readUpTo(fh, maxCharacters)
}

// readUpTo reads at most maxCharacters bytes; a shorter document is not an
// error.
func readUpTo(r io.Reader, maxCharacters uint) (string, error) {
	text := strings.Builder{}
	_, err := io.CopyN(&text, r, int64(maxCharacters))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return text.String(), nil
}
