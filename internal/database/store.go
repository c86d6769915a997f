// file: internal/database/store.go
// version: 1.3.0
// guid: 0a6e3d9c-4b7f-4e2a-8d1c-5f9b2e7a0c48

package database

import (
	"fmt"
	"time"
)

// User is an account created on first sight of a trusted auth header value.
type User struct {
	ID            string
	Name          string
	PublicOngoing bool
}

// Book is one catalog entry owned by a user. Optional bibliographic fields
// are pointers so that "unknown" survives round-trips unchanged.
type Book struct {
	ID             string
	Owner          string
	ISBN           string
	Title          string
	Summary        string
	Published      *time.Time
	Publisher      *string
	Language       *string
	GoogleID       *string
	AmazonID       *string
	LibraryThingID *string
	PageCount      *int
	Owned          bool
	Read           bool
}

// Author is a global (cross-user) author row, linked to books by position so
// that author order is preserved.
type Author struct {
	ID   int
	Name string
}

// Series groups numbered volumes for one owner. TotalCount is nil while the
// series length is unknown; Ongoing marks series the user is still following.
type Series struct {
	ID         string
	Owner      string
	Name       string
	TotalCount *int
	Ongoing    bool
}

// SeriesWithCount pairs a series with the number of volumes the owner has.
type SeriesWithCount struct {
	Series
	OwnedCount int
}

// BookSeriesInfo describes a book's position within its series.
type BookSeriesInfo struct {
	SeriesID   string
	SeriesName string
	Number     int
}

// SeriesSelection names the series (created on demand) and volume number a
// book is filed under.
type SeriesSelection struct {
	Name   string
	Number int
}

// Book list sort orders.
const (
	SortByTitle     = "title"
	SortByAuthor    = "author"
	SortByPublished = "published"
)

// BookFilter narrows and orders ListBooks results.
type BookFilter struct {
	TitleContains string
	Sort          string
}

// Store defines the interface for our database operations.
type Store interface {
	// Lifecycle
	Close() error

	// Users
	GetOrCreateUser(name string) (*User, error)
	GetUserByID(id string) (*User, error)
	SetUserPublicOngoing(id string, public bool) error

	// Books
	CreateBook(book *Book, authors, tags []string, series *SeriesSelection) (*Book, error)
	UpdateBook(book *Book, authors, tags []string, series *SeriesSelection) error
	DeleteBook(owner, id string) error
	GetBookByID(owner, id string) (*Book, error)
	ListBooks(owner string, filter BookFilter) ([]Book, error)
	ListUnreadBooks(owner string) ([]Book, error)
	CountBooksByISBN(owner, isbn string) (int, error)
	CountBooks() (int, error)

	// Book relationships
	GetBookAuthors(bookID string) ([]Author, error)
	GetBookTags(bookID string) ([]string, error)
	GetBookSeries(bookID string) (*BookSeriesInfo, error)

	// Authors and tags
	GetAuthorByID(id int) (*Author, error)
	GetBooksByAuthor(owner string, authorID int) ([]Book, error)
	ListAuthorNames(owner string) ([]string, error)
	ListTagNames(owner string) ([]string, error)

	// Series
	GetSeriesByID(owner, id string) (*Series, error)
	UpdateSeries(series *Series) error
	ListSeries(owner string) ([]SeriesWithCount, error)
	ListSeriesNames(owner string) ([]string, error)
	GetSeriesBooks(owner, seriesID string) ([]Book, error)
	GetSeriesVolumes(seriesID string) ([]int, error)
}

// GlobalStore is the application-wide store instance, set by InitializeStore.
var GlobalStore Store

// InitializeStore opens the SQLite store and installs it as GlobalStore.
func InitializeStore(path string) error {
	store, err := NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	GlobalStore = store
	return nil
}

// CloseStore closes GlobalStore if one is set.
func CloseStore() error {
	if GlobalStore == nil {
		return nil
	}
	err := GlobalStore.Close()
	GlobalStore = nil
	return err
}
