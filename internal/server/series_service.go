// file: internal/server/series_service.go
// version: 1.3.0
// guid: 5e9c3a7b-1d4f-4c8e-a2b6-9f0d7e3c5a82

package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bookloft/internal/database"
)

// handleSeriesList renders all of the user's series with owned volume counts.
func (s *Server) handleSeriesList(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	series, err := s.store.ListSeries(user.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to list series", err)
		return
	}

	c.HTML(http.StatusOK, "series_list.html", gin.H{
		"User":   user,
		"Series": series,
	})
}

// handleSeries renders one series with its volumes in number order.
func (s *Server) handleSeries(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	series, err := s.store.GetSeriesByID(user.ID, c.Param("id"))
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load series", err)
		return
	}
	if series == nil {
		renderNotFound(c, "series")
		return
	}

	books, err := s.store.GetSeriesBooks(user.ID, series.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load series books", err)
		return
	}
	items, err := s.listItems(user, books)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load book authors", err)
		return
	}

	c.HTML(http.StatusOK, "series.html", gin.H{
		"User":   user,
		"Series": series,
		"Books":  items,
	})
}

// handleSeriesEditForm renders the series edit form.
func (s *Server) handleSeriesEditForm(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	series, err := s.store.GetSeriesByID(user.ID, c.Param("id"))
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load series", err)
		return
	}
	if series == nil {
		renderNotFound(c, "series")
		return
	}

	c.HTML(http.StatusOK, "series_edit.html", gin.H{
		"User":   user,
		"Series": series,
	})
}

// handleSeriesEdit applies the submitted name, total count and ongoing flag.
func (s *Server) handleSeriesEdit(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	series, err := s.store.GetSeriesByID(user.ID, c.Param("id"))
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load series", err)
		return
	}
	if series == nil {
		renderNotFound(c, "series")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.HTML(http.StatusBadRequest, "series_edit.html", gin.H{
			"User":    user,
			"Series":  series,
			"Failure": "Name is required.",
		})
		return
	}
	series.Name = name
	series.Ongoing = c.PostForm("ongoing") != ""

	series.TotalCount = nil
	if total := strings.TrimSpace(c.PostForm("total_count")); total != "" {
		n, err := strconv.Atoi(total)
		if err != nil || n < 1 {
			c.HTML(http.StatusBadRequest, "series_edit.html", gin.H{
				"User":    user,
				"Series":  series,
				"Failure": "Total count must be a positive number.",
			})
			return
		}
		series.TotalCount = &n
	}

	if err := s.store.UpdateSeries(series); err != nil {
		renderError(c, http.StatusInternalServerError, "failed to update series", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/series/"+series.ID)
}

// handleAuthor renders the user's books credited to one author.
func (s *Server) handleAuthor(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		renderNotFound(c, "author")
		return
	}

	author, err := s.store.GetAuthorByID(id)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load author", err)
		return
	}
	if author == nil {
		renderNotFound(c, "author")
		return
	}

	books, err := s.store.GetBooksByAuthor(user.ID, author.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load author books", err)
		return
	}
	items, err := s.listItems(user, books)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load book authors", err)
		return
	}

	c.HTML(http.StatusOK, "author.html", gin.H{
		"User":   user,
		"Author": author,
		"Books":  items,
	})
}

// unreadGroup is one section of the unread page: the books of one series
// (or the series-less remainder) still waiting to be read.
type unreadGroup struct {
	SeriesID   string
	SeriesName string
	Books      []bookListItem
}

// handleUnread renders unread books grouped by series.
func (s *Server) handleUnread(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	books, err := s.store.ListUnreadBooks(user.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to list unread books", err)
		return
	}

	groups := []unreadGroup{}
	index := map[string]int{}
	var loose []database.Book
	for _, book := range books {
		info, err := s.store.GetBookSeries(book.ID)
		if err != nil {
			renderError(c, http.StatusInternalServerError, "failed to load series links", err)
			return
		}
		if info == nil {
			loose = append(loose, book)
			continue
		}
		i, seen := index[info.SeriesID]
		if !seen {
			i = len(groups)
			index[info.SeriesID] = i
			groups = append(groups, unreadGroup{SeriesID: info.SeriesID, SeriesName: info.SeriesName})
		}
		item, err := s.listItems(user, []database.Book{book})
		if err != nil {
			renderError(c, http.StatusInternalServerError, "failed to load book authors", err)
			return
		}
		groups[i].Books = append(groups[i].Books, item[0])
	}

	looseItems, err := s.listItems(user, loose)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load book authors", err)
		return
	}

	c.HTML(http.StatusOK, "unread.html", gin.H{
		"User":   user,
		"Groups": groups,
		"Loose":  gin.H{"Books": looseItems},
	})
}
