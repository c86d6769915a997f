// file: internal/server/book_service.go
// version: 1.5.0
// guid: 4d8b2e6f-0a3c-4f7d-9b1e-6c5a8f2d0e39

package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bookloft/internal/database"
	"bookloft/internal/metadata"
	"bookloft/internal/server/middleware"
)

// bookForm carries the add/edit form fields as submitted strings, so the
// page can be re-rendered with the user's input intact on validation errors.
type bookForm struct {
	Title          string
	ISBN           string
	Summary        string
	Published      string
	Publisher      string
	Language       string
	GoogleID       string
	AmazonID       string
	LibraryThingID string
	PageCount      string
	Owned          bool
	Read           bool
	Authors        string // one per line
	Tags           string // comma separated
	SeriesName     string
	SeriesNumber   string
	CoverB64       string
}

// providerOption is one entry of the provider dropdown on the add page.
type providerOption struct {
	Token    string
	Label    string
	Selected bool
}

// bookListItem is one entry of the library grid.
type bookListItem struct {
	database.Book
	AuthorNames string
	HasCover    bool
}

func mustUser(c *gin.Context) (*database.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		renderError(c, http.StatusInternalServerError, "no authenticated user in context", nil)
		return nil, false
	}
	return user, true
}

func (s *Server) providerOptions(selected metadata.Provider) []providerOption {
	var opts []providerOption
	for _, p := range s.fetcher.Providers() {
		opts = append(opts, providerOption{
			Token:    p.Token(),
			Label:    p.Label(),
			Selected: p == selected,
		})
	}
	return opts
}

func (s *Server) listItems(user *database.User, books []database.Book) ([]bookListItem, error) {
	items := make([]bookListItem, 0, len(books))
	for _, book := range books {
		authors, err := s.store.GetBookAuthors(book.ID)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(authors))
		for i, a := range authors {
			names[i] = a.Name
		}
		items = append(items, bookListItem{
			Book:        book,
			AuthorNames: strings.Join(names, ", "),
			HasCover:    s.hasCover(user.ID, book.ID),
		})
	}
	return items, nil
}

// handleIndex renders the library grid with title filter and sorting.
func (s *Server) handleIndex(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	filter := database.BookFilter{
		TitleContains: strings.TrimSpace(c.Query("q")),
	}
	switch c.Query("sort") {
	case database.SortByAuthor:
		filter.Sort = database.SortByAuthor
	case database.SortByPublished:
		filter.Sort = database.SortByPublished
	default:
		filter.Sort = database.SortByTitle
	}

	books, err := s.store.ListBooks(user.ID, filter)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to list books", err)
		return
	}
	items, err := s.listItems(user, books)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load book authors", err)
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"User":   user,
		"Books":  items,
		"Filter": filter.TitleContains,
		"Sort":   filter.Sort,
	})
}

// handleAddForm renders the add-book form. When an ISBN is supplied the
// selected provider is queried first and the form is prefilled from the
// result. "Nothing found" and "fetch failed" are distinct notices.
func (s *Server) handleAddForm(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	isbn := strings.TrimSpace(c.Query("isbn"))
	provider, err := s.fetcher.Resolve(c.Query("provider"))
	if err != nil {
		renderError(c, http.StatusBadRequest, "unknown metadata provider", err)
		return
	}

	form := &bookForm{ISBN: isbn, Owned: true}
	data := gin.H{
		"User":      user,
		"Form":      form,
		"Providers": s.providerOptions(provider),
		"ISBN":      isbn,
	}

	if isbn != "" {
		count, err := s.store.CountBooksByISBN(user.ID, isbn)
		if err != nil {
			renderError(c, http.StatusInternalServerError, "failed to check library", err)
			return
		}
		switch {
		case count > 0:
			data["Notice"] = fmt.Sprintf("ISBN %s is already in your library.", isbn)
		default:
			record, err := s.fetcher.Fetch(c.Request.Context(), isbn, provider)
			switch {
			case err != nil:
				log.Printf("[ERROR] Metadata fetch for ISBN %s failed: %v", isbn, err)
				data["Failure"] = fmt.Sprintf("Fetching metadata from %s failed.", provider.Label())
			case record == nil:
				data["Notice"] = fmt.Sprintf("%s has no entry for ISBN %s.", provider.Label(), isbn)
			default:
				*form = formFromMetadata(record, isbn)
			}
		}
	}

	c.HTML(http.StatusOK, "add.html", data)
}

func formFromMetadata(record *metadata.BookMetadata, isbn string) bookForm {
	form := bookForm{ISBN: isbn, Owned: record.Owned, Read: record.Read}
	if record.ISBN != nil {
		form.ISBN = *record.ISBN
	}
	if record.Title != nil {
		form.Title = *record.Title
	}
	if record.Summary != nil {
		form.Summary = *record.Summary
	}
	if record.Published != nil {
		form.Published = record.Published.Format("2006-01-02")
	}
	if record.Publisher != nil {
		form.Publisher = *record.Publisher
	}
	if record.Language != nil {
		form.Language = *record.Language
	}
	if record.GoogleID != nil {
		form.GoogleID = *record.GoogleID
	}
	if record.AmazonID != nil {
		form.AmazonID = *record.AmazonID
	}
	if record.LibraryThingID != nil {
		form.LibraryThingID = *record.LibraryThingID
	}
	if record.PageCount != nil {
		form.PageCount = strconv.Itoa(*record.PageCount)
	}
	if record.CoverArtB64 != nil {
		form.CoverB64 = *record.CoverArtB64
	}
	form.Authors = strings.Join(record.Authors, "\n")
	form.Tags = strings.Join(record.Tags, ", ")
	if record.Series != nil {
		form.SeriesName = record.Series.Name
		form.SeriesNumber = strconv.Itoa(record.Series.Number)
	}
	return form
}

// parseBookForm turns submitted form fields into a book row plus its links.
// The returned message is non-empty when validation fails.
func parseBookForm(c *gin.Context, owner string) (*database.Book, []string, []string, *database.SeriesSelection, *bookForm, string) {
	form := &bookForm{
		Title:          strings.TrimSpace(c.PostForm("title")),
		ISBN:           strings.TrimSpace(c.PostForm("isbn")),
		Summary:        strings.TrimSpace(c.PostForm("summary")),
		Published:      strings.TrimSpace(c.PostForm("published")),
		Publisher:      strings.TrimSpace(c.PostForm("publisher")),
		Language:       strings.TrimSpace(c.PostForm("language")),
		GoogleID:       strings.TrimSpace(c.PostForm("google_id")),
		AmazonID:       strings.TrimSpace(c.PostForm("amazon_id")),
		LibraryThingID: strings.TrimSpace(c.PostForm("librarything_id")),
		PageCount:      strings.TrimSpace(c.PostForm("page_count")),
		Owned:          c.PostForm("owned") != "",
		Read:           c.PostForm("read") != "",
		Authors:        c.PostForm("authors"),
		Tags:           c.PostForm("tags"),
		SeriesName:     strings.TrimSpace(c.PostForm("series_name")),
		SeriesNumber:   strings.TrimSpace(c.PostForm("series_number")),
		CoverB64:       strings.TrimSpace(c.PostForm("cover")),
	}

	if form.Title == "" {
		return nil, nil, nil, nil, form, "Title is required."
	}

	book := &database.Book{
		Owner:          owner,
		ISBN:           form.ISBN,
		Title:          form.Title,
		Summary:        form.Summary,
		Publisher:      optString(form.Publisher),
		Language:       optString(form.Language),
		GoogleID:       optString(form.GoogleID),
		AmazonID:       optString(form.AmazonID),
		LibraryThingID: optString(form.LibraryThingID),
		Owned:          form.Owned,
		Read:           form.Read,
	}

	if form.Published != "" {
		t, err := time.Parse("2006-01-02", form.Published)
		if err != nil {
			return nil, nil, nil, nil, form, "Publication date must look like 2006-01-02."
		}
		book.Published = &t
	}
	if form.PageCount != "" {
		n, err := strconv.Atoi(form.PageCount)
		if err != nil || n < 0 {
			return nil, nil, nil, nil, form, "Page count must be a number."
		}
		book.PageCount = &n
	}

	authors := splitLines(form.Authors)
	tags := splitList(form.Tags)

	var series *database.SeriesSelection
	if form.SeriesName != "" {
		number := 1
		if form.SeriesNumber != "" {
			n, err := strconv.Atoi(form.SeriesNumber)
			if err != nil || n < 1 {
				return nil, nil, nil, nil, form, "Series number must be a positive number."
			}
			number = n
		}
		series = &database.SeriesSelection{Name: form.SeriesName, Number: number}
	}

	return book, authors, tags, series, form, ""
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// handleAddBook creates a book from the submitted form.
func (s *Server) handleAddBook(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	book, authors, tags, series, form, msg := parseBookForm(c, user.ID)
	if msg != "" {
		c.HTML(http.StatusBadRequest, "add.html", gin.H{
			"User":      user,
			"Form":      form,
			"Providers": s.providerOptions(s.fetcher.Default()),
			"ISBN":      form.ISBN,
			"Failure":   msg,
		})
		return
	}

	created, err := s.store.CreateBook(book, authors, tags, series)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to create book", err)
		return
	}
	if err := s.saveCover(user.ID, created.ID, form.CoverB64); err != nil {
		renderError(c, http.StatusInternalServerError, "failed to store cover image", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/book/"+created.ID)
}

// handleBook renders the detail page of one book.
func (s *Server) handleBook(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	book, err := s.store.GetBookByID(user.ID, c.Param("id"))
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load book", err)
		return
	}
	if book == nil {
		renderNotFound(c, "book")
		return
	}

	authors, err := s.store.GetBookAuthors(book.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load authors", err)
		return
	}
	tags, err := s.store.GetBookTags(book.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load tags", err)
		return
	}
	series, err := s.store.GetBookSeries(book.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load series", err)
		return
	}

	c.HTML(http.StatusOK, "book.html", gin.H{
		"User":     user,
		"Book":     book,
		"Authors":  authors,
		"Tags":     tags,
		"Series":   series,
		"HasCover": s.hasCover(user.ID, book.ID),
	})
}

// handleEditForm renders the edit form prefilled from the stored book.
func (s *Server) handleEditForm(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	book, err := s.store.GetBookByID(user.ID, c.Param("id"))
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load book", err)
		return
	}
	if book == nil {
		renderNotFound(c, "book")
		return
	}

	authors, err := s.store.GetBookAuthors(book.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load authors", err)
		return
	}
	tags, err := s.store.GetBookTags(book.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load tags", err)
		return
	}
	series, err := s.store.GetBookSeries(book.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load series", err)
		return
	}

	form := formFromBook(book, authors, tags, series)
	c.HTML(http.StatusOK, "book_edit.html", gin.H{
		"User": user,
		"Book": book,
		"Form": &form,
	})
}

func formFromBook(book *database.Book, authors []database.Author, tags []string, series *database.BookSeriesInfo) bookForm {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.Name
	}
	form := bookForm{
		Title:   book.Title,
		ISBN:    book.ISBN,
		Summary: book.Summary,
		Owned:   book.Owned,
		Read:    book.Read,
		Authors: strings.Join(names, "\n"),
		Tags:    strings.Join(tags, ", "),
	}
	if book.Published != nil {
		form.Published = book.Published.Format("2006-01-02")
	}
	if book.Publisher != nil {
		form.Publisher = *book.Publisher
	}
	if book.Language != nil {
		form.Language = *book.Language
	}
	if book.GoogleID != nil {
		form.GoogleID = *book.GoogleID
	}
	if book.AmazonID != nil {
		form.AmazonID = *book.AmazonID
	}
	if book.LibraryThingID != nil {
		form.LibraryThingID = *book.LibraryThingID
	}
	if book.PageCount != nil {
		form.PageCount = strconv.Itoa(*book.PageCount)
	}
	if series != nil {
		form.SeriesName = series.SeriesName
		form.SeriesNumber = strconv.Itoa(series.Number)
	}
	return form
}

// handleEditBook applies the submitted form to an existing book.
func (s *Server) handleEditBook(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	existing, err := s.store.GetBookByID(user.ID, c.Param("id"))
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load book", err)
		return
	}
	if existing == nil {
		renderNotFound(c, "book")
		return
	}

	book, authors, tags, series, form, msg := parseBookForm(c, user.ID)
	if msg != "" {
		c.HTML(http.StatusBadRequest, "book_edit.html", gin.H{
			"User":    user,
			"Book":    existing,
			"Form":    form,
			"Failure": msg,
		})
		return
	}
	book.ID = existing.ID

	if err := s.store.UpdateBook(book, authors, tags, series); err != nil {
		renderError(c, http.StatusInternalServerError, "failed to update book", err)
		return
	}
	if err := s.saveCover(user.ID, book.ID, form.CoverB64); err != nil {
		renderError(c, http.StatusInternalServerError, "failed to store cover image", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/book/"+book.ID)
}

// handleDeleteBook removes a book and its cover image.
func (s *Server) handleDeleteBook(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	book, err := s.store.GetBookByID(user.ID, c.Param("id"))
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load book", err)
		return
	}
	if book == nil {
		renderNotFound(c, "book")
		return
	}

	if err := s.store.DeleteBook(user.ID, book.ID); err != nil {
		renderError(c, http.StatusInternalServerError, "failed to delete book", err)
		return
	}
	if err := s.removeCover(user.ID, book.ID); err != nil {
		log.Printf("[WARN] Failed to remove cover for book %s: %v", book.ID, err)
	}

	c.Redirect(http.StatusSeeOther, "/")
}
