// file: internal/database/sqlite_store_test.go
// version: 1.2.0
// guid: 2d9c4f7b-1e3a-4b6d-8c0f-7a5e9d2b4c61

package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestGetOrCreateUser(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Name)
	assert.False(t, user.PublicOngoing)

	again, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	other, err := store.GetOrCreateUser("bob")
	require.NoError(t, err)
	assert.NotEqual(t, user.ID, other.ID)
}

func TestSetUserPublicOngoing(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	require.NoError(t, store.SetUserPublicOngoing(user.ID, true))

	got, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.PublicOngoing)
}

func TestGetUserByIDMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetUserByID("no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateAndGetBook(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	published := time.Date(2020, 8, 15, 0, 0, 0, 0, time.UTC)
	book := &Book{
		Owner:     user.ID,
		ISBN:      "9781526626585",
		Title:     "Harry Potter and the Philosopher's Stone",
		Summary:   "A boy discovers he is a wizard.",
		Published: &published,
		Publisher: strPtr("Bloomsbury"),
		Language:  strPtr("eng"),
		GoogleID:  strPtr("cmNSzQEACAAJ"),
		PageCount: intPtr(368),
		Owned:     true,
	}

	created, err := store.CreateBook(book,
		[]string{"J. K. Rowling"},
		[]string{"Fantasy", "Fiction"},
		&SeriesSelection{Name: "Harry Potter", Number: 1})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.GetBookByID(user.ID, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, book.ISBN, got.ISBN)
	require.NotNil(t, got.Published)
	assert.Equal(t, published, *got.Published)
	require.NotNil(t, got.Publisher)
	assert.Equal(t, "Bloomsbury", *got.Publisher)
	require.NotNil(t, got.PageCount)
	assert.Equal(t, 368, *got.PageCount)
	assert.True(t, got.Owned)
	assert.False(t, got.Read)

	authors, err := store.GetBookAuthors(created.ID)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "J. K. Rowling", authors[0].Name)

	tags, err := store.GetBookTags(created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fantasy", "Fiction"}, tags)

	series, err := store.GetBookSeries(created.ID)
	require.NoError(t, err)
	require.NotNil(t, series)
	assert.Equal(t, "Harry Potter", series.SeriesName)
	assert.Equal(t, 1, series.Number)
}

func TestGetBookByIDScopedToOwner(t *testing.T) {
	store := newTestStore(t)

	alice, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)
	bob, err := store.GetOrCreateUser("bob")
	require.NoError(t, err)

	created, err := store.CreateBook(&Book{Owner: alice.ID, Title: "Dune"}, nil, nil, nil)
	require.NoError(t, err)

	got, err := store.GetBookByID(bob.ID, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateBookPreservesAuthorOrder(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	created, err := store.CreateBook(&Book{Owner: user.ID, Title: "Good Omens"},
		[]string{"Terry Pratchett", "Neil Gaiman"}, nil, nil)
	require.NoError(t, err)

	authors, err := store.GetBookAuthors(created.ID)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, "Terry Pratchett", authors[0].Name)
	assert.Equal(t, "Neil Gaiman", authors[1].Name)
}

func TestUpdateBookReplacesLinks(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	created, err := store.CreateBook(&Book{Owner: user.ID, Title: "Old Title"},
		[]string{"Author One"}, []string{"old"},
		&SeriesSelection{Name: "Old Series", Number: 3})
	require.NoError(t, err)

	created.Title = "New Title"
	created.Read = true
	require.NoError(t, store.UpdateBook(created,
		[]string{"Author Two"}, []string{"new"}, nil))

	got, err := store.GetBookByID(user.ID, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New Title", got.Title)
	assert.True(t, got.Read)

	authors, err := store.GetBookAuthors(created.ID)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "Author Two", authors[0].Name)

	tags, err := store.GetBookTags(created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, tags)

	series, err := store.GetBookSeries(created.ID)
	require.NoError(t, err)
	assert.Nil(t, series)
}

func TestUpdateBookMissing(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	err = store.UpdateBook(&Book{ID: "no-such-book", Owner: user.ID, Title: "x"}, nil, nil, nil)
	assert.Error(t, err)
}

func TestDeleteBook(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	created, err := store.CreateBook(&Book{Owner: user.ID, Title: "Dune"},
		[]string{"Frank Herbert"}, []string{"sf"},
		&SeriesSelection{Name: "Dune", Number: 1})
	require.NoError(t, err)

	require.NoError(t, store.DeleteBook(user.ID, created.ID))

	got, err := store.GetBookByID(user.ID, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Link rows cascade with the book.
	authors, err := store.GetBookAuthors(created.ID)
	require.NoError(t, err)
	assert.Empty(t, authors)

	assert.Error(t, store.DeleteBook(user.ID, created.ID))
}

func TestListBooksFilterAndSort(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	early := time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(1984, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, b := range []*Book{
		{Owner: user.ID, Title: "Neuromancer", Published: &late},
		{Owner: user.ID, Title: "Dune", Published: &early},
		{Owner: user.ID, Title: "Dune Messiah"},
	} {
		_, err := store.CreateBook(b, nil, nil, nil)
		require.NoError(t, err)
	}

	books, err := store.ListBooks(user.ID, BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, "Dune Messiah", books[1].Title)
	assert.Equal(t, "Neuromancer", books[2].Title)

	books, err = store.ListBooks(user.ID, BookFilter{TitleContains: "dune"})
	require.NoError(t, err)
	require.Len(t, books, 2)

	// Undated books sort after dated ones.
	books, err = store.ListBooks(user.ID, BookFilter{Sort: SortByPublished})
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, "Neuromancer", books[1].Title)
	assert.Equal(t, "Dune Messiah", books[2].Title)
}

func TestListBooksEscapesLikeWildcards(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	_, err = store.CreateBook(&Book{Owner: user.ID, Title: "100% Wolf"}, nil, nil, nil)
	require.NoError(t, err)
	_, err = store.CreateBook(&Book{Owner: user.ID, Title: "100 Years"}, nil, nil, nil)
	require.NoError(t, err)

	books, err := store.ListBooks(user.ID, BookFilter{TitleContains: "100%"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "100% Wolf", books[0].Title)
}

func TestListUnreadBooks(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	_, err = store.CreateBook(&Book{Owner: user.ID, Title: "Read Already", Read: true}, nil, nil, nil)
	require.NoError(t, err)
	_, err = store.CreateBook(&Book{Owner: user.ID, Title: "Still Unread"}, nil, nil, nil)
	require.NoError(t, err)

	books, err := store.ListUnreadBooks(user.ID)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Still Unread", books[0].Title)
}

func TestCountBooksByISBN(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	_, err = store.CreateBook(&Book{Owner: user.ID, ISBN: "9781526626585", Title: "HP"}, nil, nil, nil)
	require.NoError(t, err)

	count, err := store.CountBooksByISBN(user.ID, "9781526626585")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountBooksByISBN(user.ID, "0000000000000")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAuthorsAndTagsScopedToOwner(t *testing.T) {
	store := newTestStore(t)

	alice, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)
	bob, err := store.GetOrCreateUser("bob")
	require.NoError(t, err)

	_, err = store.CreateBook(&Book{Owner: alice.ID, Title: "A"},
		[]string{"Shared Author"}, []string{"alice-tag"}, nil)
	require.NoError(t, err)
	_, err = store.CreateBook(&Book{Owner: bob.ID, Title: "B"},
		[]string{"Bob Author"}, []string{"bob-tag"}, nil)
	require.NoError(t, err)

	names, err := store.ListAuthorNames(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shared Author"}, names)

	tags, err := store.ListTagNames(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice-tag"}, tags)
}

func TestGetBooksByAuthor(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	created, err := store.CreateBook(&Book{Owner: user.ID, Title: "Dune"},
		[]string{"Frank Herbert"}, nil, nil)
	require.NoError(t, err)

	authors, err := store.GetBookAuthors(created.ID)
	require.NoError(t, err)
	require.Len(t, authors, 1)

	author, err := store.GetAuthorByID(authors[0].ID)
	require.NoError(t, err)
	require.NotNil(t, author)
	assert.Equal(t, "Frank Herbert", author.Name)

	books, err := store.GetBooksByAuthor(user.ID, author.ID)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
}

func TestSeriesLifecycle(t *testing.T) {
	store := newTestStore(t)

	user, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)

	for n, title := range map[int]string{1: "Vol One", 3: "Vol Three"} {
		_, err := store.CreateBook(&Book{Owner: user.ID, Title: title},
			nil, nil, &SeriesSelection{Name: "Saga", Number: n})
		require.NoError(t, err)
	}

	list, err := store.ListSeries(user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Saga", list[0].Name)
	assert.Equal(t, 2, list[0].OwnedCount)
	assert.Nil(t, list[0].TotalCount)

	series, err := store.GetSeriesByID(user.ID, list[0].ID)
	require.NoError(t, err)
	require.NotNil(t, series)

	series.TotalCount = intPtr(5)
	series.Ongoing = true
	require.NoError(t, store.UpdateSeries(series))

	updated, err := store.GetSeriesByID(user.ID, series.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.TotalCount)
	assert.Equal(t, 5, *updated.TotalCount)
	assert.True(t, updated.Ongoing)

	volumes, err := store.GetSeriesVolumes(series.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, volumes)

	books, err := store.GetSeriesBooks(user.ID, series.ID)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Vol One", books[0].Title)
	assert.Equal(t, "Vol Three", books[1].Title)

	names, err := store.ListSeriesNames(user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Saga"}, names)
}

func TestSeriesSeparatePerOwner(t *testing.T) {
	store := newTestStore(t)

	alice, err := store.GetOrCreateUser("alice")
	require.NoError(t, err)
	bob, err := store.GetOrCreateUser("bob")
	require.NoError(t, err)

	_, err = store.CreateBook(&Book{Owner: alice.ID, Title: "A"},
		nil, nil, &SeriesSelection{Name: "Saga", Number: 1})
	require.NoError(t, err)
	_, err = store.CreateBook(&Book{Owner: bob.ID, Title: "B"},
		nil, nil, &SeriesSelection{Name: "Saga", Number: 1})
	require.NoError(t, err)

	aliceSeries, err := store.ListSeries(alice.ID)
	require.NoError(t, err)
	bobSeries, err := store.ListSeries(bob.ID)
	require.NoError(t, err)
	require.Len(t, aliceSeries, 1)
	require.Len(t, bobSeries, 1)
	assert.NotEqual(t, aliceSeries[0].ID, bobSeries[0].ID)
}

func TestInitializeAndCloseStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.db")
	require.NoError(t, InitializeStore(path))
	require.NotNil(t, GlobalStore)

	_, err := GlobalStore.GetOrCreateUser("alice")
	require.NoError(t, err)

	require.NoError(t, CloseStore())
	assert.Nil(t, GlobalStore)
	assert.NoError(t, CloseStore())
}
