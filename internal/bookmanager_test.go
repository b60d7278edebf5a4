package internal_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/larkwiot/shelf/internal"
	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/cache"
	"github.com/larkwiot/shelf/internal/config"
	"github.com/larkwiot/shelf/internal/extractors"
	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/larkwiot/shelf/internal/providers"
	"github.com/larkwiot/shelf/internal/resolver"
	"github.com/larkwiot/shelf/internal/util"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalog struct {
	lock   sync.Mutex
	books  map[isbn.Canonical]book.Record
	lookup []isbn.Canonical
}

func (c *catalog) Name() string {
	return "Catalog"
}

func (c *catalog) Lookup(_ context.Context, key isbn.Canonical) (book.Record, bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.lookup = append(c.lookup, key)
	rec, ok := c.books[key]
	return rec, ok, nil
}

func (c *catalog) Disabled() bool {
	return false
}

type collector struct {
	lock  sync.Mutex
	files map[string]book.File
}

func (c *collector) WriteObject(f *book.File) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.files[f.Filepath] = *f
}

func (c *collector) Close() {}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newManager(t *testing.T, c *catalog) *internal.BookManager {
	t.Helper()
	conf := config.Default()
	r := resolver.New([]providers.Provider{c}, cache.NewMemory(), resolver.WithLogger(util.NullLogger()))
	bm, err := internal.NewBookManager(conf, r, []extractors.Extractor{extractors.PlainText{}}, 4, util.NullLogger())
	require.NoError(t, err)
	bm.SetProgressOutput(io.Discard)
	return bm
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	found := writeFile(t, dir, "dune.txt", "Copyright page\nISBN 978-0-306-40615-7 (hardcover)\n")
	unknown := writeFile(t, dir, "nested/unknown.rst", "ISBN 0-306-40615-2")
	noIsbn := writeFile(t, dir, "notes.txt", "nothing to see here")
	pdf := writeFile(t, dir, "scanned.pdf", "%PDF-1.4")
	writeFile(t, dir, "cover.jpg", "not a book")

	c := &catalog{books: map[isbn.Canonical]book.Record{
		"9780306406157": {Title: mo.Some("Dune")},
	}}
	bm := newManager(t, c)
	out := &collector{files: map[string]book.File{}}

	require.NoError(t, bm.Scan(context.Background(), dir, false, out))

	assert.Len(t, out.files, 4)

	got := out.files[found]
	assert.False(t, got.Failed())
	assert.Equal(t, "9780306406157", got.Isbn)
	assert.Equal(t, "PlainText", got.Extractor)
	require.NotNil(t, got.Record)
	assert.Equal(t, "Dune", got.Record.Title.MustGet())

	assert.True(t, out.files[unknown].Failed())
	assert.Equal(t, []string{"0306406152"}, out.files[unknown].Candidates)
	assert.Contains(t, out.files[noIsbn].ErrorMessage, "found no ISBN")
	assert.Contains(t, out.files[pdf].ErrorMessage, "no extractor accepts .pdf")

	assert.Equal(t, out.files, bm.Books())
}

func TestScanDryRunMakesNoLookups(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dune.txt", "ISBN 9780306406157")

	c := &catalog{books: map[isbn.Canonical]book.Record{}}
	bm := newManager(t, c)
	out := &collector{files: map[string]book.File{}}

	require.NoError(t, bm.Scan(context.Background(), dir, true, out))

	assert.Empty(t, c.lookup)
	assert.Equal(t, []string{"9780306406157"}, out.files[path].Candidates)
	assert.Nil(t, out.files[path].Record)
	assert.False(t, out.files[path].Failed())
}

func TestScanImportAndRetry(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "ISBN 9780306406157")
	bad := writeFile(t, dir, "bad.txt", "ISBN 0306406152")

	previous := map[string]book.File{
		good: {Filepath: good, Isbn: "9780306406157", Record: &book.Record{Title: mo.Some("Cached")}},
		bad:  {Filepath: bad, ErrorMessage: "none of the 1 identified ISBNs were found in any source"},
	}
	data, err := json.Marshal(previous)
	require.NoError(t, err)
	previousPath := writeFile(t, t.TempDir(), "books.json", string(data))

	c := &catalog{books: map[isbn.Canonical]book.Record{
		"0306406152": {Title: mo.Some("Now Found")},
	}}

	bm := newManager(t, c)
	require.NoError(t, bm.Import(previousPath, false))
	out := &collector{files: map[string]book.File{}}
	require.NoError(t, bm.Scan(context.Background(), dir, false, out))
	assert.Empty(t, c.lookup)
	assert.True(t, out.files[bad].Failed())

	bm = newManager(t, c)
	require.NoError(t, bm.Import(previousPath, true))
	out = &collector{files: map[string]book.File{}}
	require.NoError(t, bm.Scan(context.Background(), dir, false, out))

	assert.Equal(t, []isbn.Canonical{"0306406152"}, c.lookup)
	assert.Equal(t, "Cached", out.files[good].Record.Title.MustGet())
	assert.False(t, out.files[bad].Failed())
	assert.Equal(t, "Now Found", out.files[bad].Record.Title.MustGet())
}

func TestScanWritesJsonStream(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dune.txt", "ISBN 9780306406157")

	c := &catalog{books: map[isbn.Canonical]book.Record{
		"9780306406157": {Title: mo.Some("Dune")},
	}}
	bm := newManager(t, c)

	outputPath := filepath.Join(t.TempDir(), "books.json")
	writer, err := util.NewJsonStreamWriter[*book.File](outputPath, func(bk *book.File) (util.JsonStreamWriterItem, error) {
		data, err := json.Marshal(bk)
		return util.JsonStreamWriterItem{Key: bk.Filepath, Data: data}, err
	})
	require.NoError(t, err)
	require.NoError(t, bm.Scan(context.Background(), dir, false, writer))
	writer.Close()

	reloaded := newManager(t, c)
	require.NoError(t, reloaded.Import(outputPath, false))
	books := reloaded.Books()
	require.Contains(t, books, path)
	assert.Equal(t, "Dune", books[path].Record.Title.MustGet())
	assert.True(t, books[path].Record.Author.IsAbsent())
}

func TestNewBookManagerRequiresExtractor(t *testing.T) {
	_, err := internal.NewBookManager(config.Default(), nil, nil, 1, util.NullLogger())
	assert.Error(t, err)
}
