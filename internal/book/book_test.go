package book_test

import (
	"encoding/json"
	"testing"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextAndCount(t *testing.T) {
	assert.True(t, book.Text("   ").IsAbsent())
	assert.Equal(t, mo.Some("Dune"), book.Text("  Dune "))
	assert.True(t, book.Count(0).IsAbsent())
	assert.True(t, book.Count(-3).IsAbsent())
	assert.Equal(t, mo.Some(412), book.Count(412))
}

func TestMergeFirstWriterWins(t *testing.T) {
	var acc book.Record

	assert.True(t, acc.Merge(book.Record{Title: mo.Some("X")}, "A"))
	assert.True(t, acc.Merge(book.Record{Title: mo.Some("Y"), Author: mo.Some("Z")}, "B"))

	assert.Equal(t, "X", acc.Title.MustGet())
	assert.Equal(t, "Z", acc.Author.MustGet())
	assert.Equal(t, []string{"A", "B"}, acc.Sources)
	assert.Equal(t, "A, B", acc.Provenance())
}

func TestMergeWithoutContributionKeepsProvenance(t *testing.T) {
	acc := book.Record{Title: mo.Some("X")}

	assert.False(t, acc.Merge(book.Record{Title: mo.Some("Y")}, "B"))
	assert.False(t, acc.Merge(book.Record{}, "C"))
	assert.Empty(t, acc.Sources)
	assert.Equal(t, "X", acc.Title.MustGet())
}

func TestMergeEveryField(t *testing.T) {
	full := book.Record{
		Title:          mo.Some("Dune"),
		Author:         mo.Some("Frank Herbert"),
		Pages:          mo.Some(412),
		CoverURL:       mo.Some("https://covers.example/dune-L.jpg"),
		Genre:          mo.Some("Science fiction"),
		Language:       mo.Some("en"),
		Edition:        mo.Some("40th anniversary"),
		Synopsis:       mo.Some("Spice."),
		Series:         mo.Some("Dune"),
		SeriesPosition: mo.Some("1"),
		Publisher:      mo.Some("Ace"),
		PublishedDate:  mo.Some("2005"),
	}

	var acc book.Record
	require.True(t, acc.Merge(full, "Open Library"))
	assert.False(t, acc.IsEmpty())

	expected := full
	expected.Sources = []string{"Open Library"}
	assert.Equal(t, expected, acc)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, book.Record{}.IsEmpty())
	assert.True(t, book.Record{Sources: []string{"A"}}.IsEmpty())
	assert.False(t, book.Record{Pages: mo.Some(1)}.IsEmpty())
}

func TestClone(t *testing.T) {
	r := book.Record{Title: mo.Some("X"), Sources: []string{"A"}}
	c := r.Clone()
	c.Sources[0] = "B"
	assert.Equal(t, "A", r.Sources[0])
}

func TestEntryJSON(t *testing.T) {
	r := book.Record{Title: mo.Some("Dune"), Pages: mo.Some(412), Sources: []string{"Google Books"}}

	data, err := json.Marshal(book.Entry{Record: r, Provenance: r.Provenance()})
	require.NoError(t, err)

	var decoded book.Entry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Dune", decoded.Record.Title.MustGet())
	assert.Equal(t, 412, decoded.Record.Pages.MustGet())
	assert.True(t, decoded.Record.Author.IsAbsent())
	assert.Equal(t, "Google Books", decoded.Provenance)
}
