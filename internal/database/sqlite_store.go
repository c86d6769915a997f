// file: internal/database/sqlite_store.go
// version: 1.4.0
// guid: 6c1f8b3e-9d2a-4f7c-b0e5-3a8d6f1c4b92

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const dateLayout = "2006-01-02"

const bookSelectColumns = `
	id, owner, isbn, title, summary, published, publisher, language,
	google_id, amazon_id, librarything_id, page_count, owned, read
`

func scanBook(scanner rowScanner, book *Book) error {
	var published sql.NullString
	if err := scanner.Scan(
		&book.ID, &book.Owner, &book.ISBN, &book.Title, &book.Summary,
		&published, &book.Publisher, &book.Language,
		&book.GoogleID, &book.AmazonID, &book.LibraryThingID,
		&book.PageCount, &book.Owned, &book.Read,
	); err != nil {
		return err
	}
	if published.Valid && published.String != "" {
		t, err := time.Parse(dateLayout, published.String)
		if err != nil {
			return fmt.Errorf("invalid stored publication date %q: %w", published.String, err)
		}
		book.Published = &t
	}
	return nil
}

func publishedValue(book *Book) any {
	if book.Published == nil {
		return nil
	}
	return book.Published.Format(dateLayout)
}

// SQLiteStore implements the Store interface using SQLite3
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates all required tables
func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		public_ongoing INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL REFERENCES users(id),
		isbn TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		published TEXT,
		publisher TEXT,
		language TEXT,
		google_id TEXT,
		amazon_id TEXT,
		librarything_id TEXT,
		page_count INTEGER,
		owned INTEGER NOT NULL DEFAULT 0,
		read INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_books_owner ON books(owner);
	CREATE INDEX IF NOT EXISTS idx_books_owner_isbn ON books(owner, isbn);

	CREATE TABLE IF NOT EXISTS authors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS book_authors (
		book TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		author INTEGER NOT NULL REFERENCES authors(id),
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (book, author)
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS book_tags (
		book TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		tag INTEGER NOT NULL REFERENCES tags(id),
		PRIMARY KEY (book, tag)
	);

	CREATE TABLE IF NOT EXISTS series (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		total_count INTEGER,
		ongoing INTEGER NOT NULL DEFAULT 0,
		UNIQUE (owner, name)
	);

	CREATE TABLE IF NOT EXISTS book_series (
		book TEXT PRIMARY KEY REFERENCES books(id) ON DELETE CASCADE,
		series TEXT NOT NULL REFERENCES series(id),
		number INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_book_series_series ON book_series(series);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrCreateUser returns the user with the given name, creating the row the
// first time the trusted auth header presents it.
func (s *SQLiteStore) GetOrCreateUser(name string) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		`SELECT id, name, public_ongoing FROM users WHERE name = ?`, name,
	).Scan(&user.ID, &user.Name, &user.PublicOngoing)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &User{ID: uuid.NewString(), Name: name}
	if _, err := s.db.Exec(
		`INSERT INTO users (id, name) VALUES (?, ?)`, user.ID, user.Name,
	); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByID returns a user, or nil when no row exists.
func (s *SQLiteStore) GetUserByID(id string) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		`SELECT id, name, public_ongoing FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Name, &user.PublicOngoing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetUserPublicOngoing updates the public visibility of the ongoing report.
func (s *SQLiteStore) SetUserPublicOngoing(id string, public bool) error {
	if _, err := s.db.Exec(
		`UPDATE users SET public_ongoing = ? WHERE id = ?`, public, id,
	); err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// CreateBook inserts the book plus its author, tag and series links in one
// transaction. A missing ID is generated.
func (s *SQLiteStore) CreateBook(book *Book, authors, tags []string, series *SeriesSelection) (*Book, error) {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO books (id, owner, isbn, title, summary, published, publisher,
			language, google_id, amazon_id, librarything_id, page_count, owned, read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID, book.Owner, book.ISBN, book.Title, book.Summary,
		publishedValue(book), book.Publisher, book.Language,
		book.GoogleID, book.AmazonID, book.LibraryThingID,
		book.PageCount, book.Owned, book.Read,
	); err != nil {
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}

	if err := s.linkBook(tx, book, authors, tags, series); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit book: %w", err)
	}
	return book, nil
}

// UpdateBook rewrites the book row and replaces its links.
func (s *SQLiteStore) UpdateBook(book *Book, authors, tags []string, series *SeriesSelection) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE books SET isbn = ?, title = ?, summary = ?, published = ?,
			publisher = ?, language = ?, google_id = ?, amazon_id = ?,
			librarything_id = ?, page_count = ?, owned = ?, read = ?
		WHERE id = ? AND owner = ?`,
		book.ISBN, book.Title, book.Summary, publishedValue(book),
		book.Publisher, book.Language, book.GoogleID, book.AmazonID,
		book.LibraryThingID, book.PageCount, book.Owned, book.Read,
		book.ID, book.Owner,
	)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("book %s not found", book.ID)
	}

	for _, stmt := range []string{
		`DELETE FROM book_authors WHERE book = ?`,
		`DELETE FROM book_tags WHERE book = ?`,
		`DELETE FROM book_series WHERE book = ?`,
	} {
		if _, err := tx.Exec(stmt, book.ID); err != nil {
			return fmt.Errorf("failed to clear book links: %w", err)
		}
	}

	if err := s.linkBook(tx, book, authors, tags, series); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit book update: %w", err)
	}
	return nil
}

// linkBook attaches authors (order preserved via position), tags, and the
// optional series row, creating referenced rows on demand.
func (s *SQLiteStore) linkBook(tx *sql.Tx, book *Book, authors, tags []string, series *SeriesSelection) error {
	for position, name := range authors {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO authors (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to upsert author: %w", err)
		}
		var authorID int
		if err := tx.QueryRow(`SELECT id FROM authors WHERE name = ?`, name).Scan(&authorID); err != nil {
			return fmt.Errorf("failed to resolve author id: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO book_authors (book, author, position) VALUES (?, ?, ?)`,
			book.ID, authorID, position,
		); err != nil {
			return fmt.Errorf("failed to link author: %w", err)
		}
	}

	for _, name := range tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to upsert tag: %w", err)
		}
		var tagID int
		if err := tx.QueryRow(`SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); err != nil {
			return fmt.Errorf("failed to resolve tag id: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO book_tags (book, tag) VALUES (?, ?)`, book.ID, tagID,
		); err != nil {
			return fmt.Errorf("failed to link tag: %w", err)
		}
	}

	if series != nil && series.Name != "" {
		var seriesID string
		err := tx.QueryRow(
			`SELECT id FROM series WHERE owner = ? AND name = ?`, book.Owner, series.Name,
		).Scan(&seriesID)
		if errors.Is(err, sql.ErrNoRows) {
			seriesID = uuid.NewString()
			if _, err := tx.Exec(
				`INSERT INTO series (id, owner, name) VALUES (?, ?, ?)`,
				seriesID, book.Owner, series.Name,
			); err != nil {
				return fmt.Errorf("failed to create series: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to resolve series: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO book_series (book, series, number) VALUES (?, ?, ?)`,
			book.ID, seriesID, series.Number,
		); err != nil {
			return fmt.Errorf("failed to link series: %w", err)
		}
	}

	return nil
}

// DeleteBook removes a book; link rows cascade.
func (s *SQLiteStore) DeleteBook(owner, id string) error {
	res, err := s.db.Exec(`DELETE FROM books WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("book %s not found", id)
	}
	return nil
}

// GetBookByID returns an owner's book, or nil when no row exists.
func (s *SQLiteStore) GetBookByID(owner, id string) (*Book, error) {
	book := &Book{}
	err := scanBook(s.db.QueryRow(
		`SELECT `+bookSelectColumns+` FROM books WHERE id = ? AND owner = ?`, id, owner,
	), book)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// ListBooks returns an owner's books, optionally filtered by a title
// substring and ordered by the requested sort.
func (s *SQLiteStore) ListBooks(owner string, filter BookFilter) ([]Book, error) {
	query := `SELECT ` + bookSelectColumns + ` FROM books WHERE owner = ?`
	args := []any{owner}

	if filter.TitleContains != "" {
		query += ` AND title LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(filter.TitleContains)+"%")
	}

	switch filter.Sort {
	case SortByPublished:
		query += ` ORDER BY published IS NULL, published, title COLLATE NOCASE`
	case SortByAuthor:
		query += ` ORDER BY (
			SELECT a.name FROM book_authors ba
			JOIN authors a ON a.id = ba.author
			WHERE ba.book = books.id
			ORDER BY ba.position LIMIT 1
		) COLLATE NOCASE NULLS LAST, title COLLATE NOCASE`
	default:
		query += ` ORDER BY title COLLATE NOCASE`
	}

	return s.queryBooks(query, args...)
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// ListUnreadBooks returns an owner's unread books ordered by title.
func (s *SQLiteStore) ListUnreadBooks(owner string) ([]Book, error) {
	return s.queryBooks(
		`SELECT `+bookSelectColumns+` FROM books
		 WHERE owner = ? AND read = 0 ORDER BY title COLLATE NOCASE`, owner)
}

// CountBooksByISBN reports how many of the owner's books carry this ISBN.
func (s *SQLiteStore) CountBooksByISBN(owner, isbn string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM books WHERE owner = ? AND isbn = ?`, owner, isbn,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count books by isbn: %w", err)
	}
	return count, nil
}

// CountBooks returns the total number of books across all users.
func (s *SQLiteStore) CountBooks() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) queryBooks(query string, args ...any) ([]Book, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var book Book
		if err := scanBook(rows, &book); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// GetBookAuthors returns a book's authors in their recorded order.
func (s *SQLiteStore) GetBookAuthors(bookID string) ([]Author, error) {
	rows, err := s.db.Query(`
		SELECT a.id, a.name FROM book_authors ba
		JOIN authors a ON a.id = ba.author
		WHERE ba.book = ? ORDER BY ba.position`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query book authors: %w", err)
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan author: %w", err)
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// GetBookTags returns a book's tag names sorted alphabetically.
func (s *SQLiteStore) GetBookTags(bookID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT t.name FROM book_tags bt
		JOIN tags t ON t.id = bt.tag
		WHERE bt.book = ? ORDER BY t.name`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query book tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// GetBookSeries returns the book's series link, or nil when it has none.
func (s *SQLiteStore) GetBookSeries(bookID string) (*BookSeriesInfo, error) {
	info := &BookSeriesInfo{}
	err := s.db.QueryRow(`
		SELECT s.id, s.name, bs.number FROM book_series bs
		JOIN series s ON s.id = bs.series
		WHERE bs.book = ?`, bookID,
	).Scan(&info.SeriesID, &info.SeriesName, &info.Number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book series: %w", err)
	}
	return info, nil
}

// GetAuthorByID returns an author, or nil when no row exists.
func (s *SQLiteStore) GetAuthorByID(id int) (*Author, error) {
	author := &Author{}
	err := s.db.QueryRow(`SELECT id, name FROM authors WHERE id = ?`, id).
		Scan(&author.ID, &author.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get author: %w", err)
	}
	return author, nil
}

// GetBooksByAuthor returns the owner's books credited to an author.
func (s *SQLiteStore) GetBooksByAuthor(owner string, authorID int) ([]Book, error) {
	return s.queryBooks(`
		SELECT `+bookSelectColumns+` FROM books
		WHERE owner = ? AND id IN (SELECT book FROM book_authors WHERE author = ?)
		ORDER BY title COLLATE NOCASE`, owner, authorID)
}

// ListAuthorNames returns the distinct author names across an owner's books.
func (s *SQLiteStore) ListAuthorNames(owner string) ([]string, error) {
	return s.queryNames(`
		SELECT DISTINCT a.name FROM authors a
		JOIN book_authors ba ON ba.author = a.id
		JOIN books b ON b.id = ba.book
		WHERE b.owner = ? ORDER BY a.name`, owner)
}

// ListTagNames returns the distinct tag names across an owner's books.
func (s *SQLiteStore) ListTagNames(owner string) ([]string, error) {
	return s.queryNames(`
		SELECT DISTINCT t.name FROM tags t
		JOIN book_tags bt ON bt.tag = t.id
		JOIN books b ON b.id = bt.book
		WHERE b.owner = ? ORDER BY t.name`, owner)
}

// ListSeriesNames returns an owner's series names.
func (s *SQLiteStore) ListSeriesNames(owner string) ([]string, error) {
	return s.queryNames(`SELECT name FROM series WHERE owner = ? ORDER BY name`, owner)
}

func (s *SQLiteStore) queryNames(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetSeriesByID returns an owner's series, or nil when no row exists.
func (s *SQLiteStore) GetSeriesByID(owner, id string) (*Series, error) {
	series := &Series{}
	err := s.db.QueryRow(
		`SELECT id, owner, name, total_count, ongoing FROM series WHERE id = ? AND owner = ?`,
		id, owner,
	).Scan(&series.ID, &series.Owner, &series.Name, &series.TotalCount, &series.Ongoing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	return series, nil
}

// UpdateSeries rewrites a series row.
func (s *SQLiteStore) UpdateSeries(series *Series) error {
	res, err := s.db.Exec(
		`UPDATE series SET name = ?, total_count = ?, ongoing = ? WHERE id = ? AND owner = ?`,
		series.Name, series.TotalCount, series.Ongoing, series.ID, series.Owner,
	)
	if err != nil {
		return fmt.Errorf("failed to update series: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("series %s not found", series.ID)
	}
	return nil
}

// ListSeries returns an owner's series with the number of volumes filed
// under each.
func (s *SQLiteStore) ListSeries(owner string) ([]SeriesWithCount, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.owner, s.name, s.total_count, s.ongoing, COUNT(bs.book)
		FROM series s
		LEFT JOIN book_series bs ON bs.series = s.id
		WHERE s.owner = ?
		GROUP BY s.id
		ORDER BY s.name COLLATE NOCASE`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var out []SeriesWithCount
	for rows.Next() {
		var sc SeriesWithCount
		if err := rows.Scan(&sc.ID, &sc.Owner, &sc.Name, &sc.TotalCount, &sc.Ongoing, &sc.OwnedCount); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetSeriesBooks returns an owner's books in a series, ordered by volume
// number.
func (s *SQLiteStore) GetSeriesBooks(owner, seriesID string) ([]Book, error) {
	return s.queryBooks(`
		SELECT `+bookSelectColumns+` FROM books
		WHERE owner = ? AND id IN (SELECT book FROM book_series WHERE series = ?)
		ORDER BY (SELECT number FROM book_series WHERE book = books.id)`, owner, seriesID)
}

// GetSeriesVolumes returns the volume numbers present in a series, sorted
// ascending. The missing-volume report subtracts these from 1..total_count.
func (s *SQLiteStore) GetSeriesVolumes(seriesID string) ([]int, error) {
	rows, err := s.db.Query(
		`SELECT number FROM book_series WHERE series = ? ORDER BY number`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to query series volumes: %w", err)
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan volume number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}
