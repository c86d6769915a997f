// file: internal/server/report_service_test.go
// version: 1.2.0
// guid: 7d1e5b9c-3a8f-4c2d-b6e0-9f4a7c1d8b35

package server

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookloft/internal/database"
)

func intPtr(n int) *int { return &n }

// seedSeries creates a user with a series holding volumes 1 and 3 of 4.
func seedSeries(t *testing.T, srv *Server, ongoing bool) (*database.User, *database.Series) {
	t.Helper()

	user, err := srv.store.GetOrCreateUser("alice")
	require.NoError(t, err)

	for _, n := range []int{1, 3} {
		_, err := srv.store.CreateBook(&database.Book{Owner: user.ID, Title: "Saga"},
			nil, nil, &database.SeriesSelection{Name: "Saga", Number: n})
		require.NoError(t, err)
	}

	list, err := srv.store.ListSeries(user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	series := &list[0].Series
	series.TotalCount = intPtr(4)
	series.Ongoing = ongoing
	require.NoError(t, srv.store.UpdateSeries(series))
	return user, series
}

func TestOngoingReportListsMissingVolumes(t *testing.T) {
	srv := newTestServer(t, nil)
	seedSeries(t, srv, false)

	w := doGet(t, srv, "/ongoing", "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Saga")
	assert.Contains(t, w.Body.String(), "2, 4")
}

func TestOngoingReportUpToDateSeries(t *testing.T) {
	srv := newTestServer(t, nil)

	user, err := srv.store.GetOrCreateUser("alice")
	require.NoError(t, err)
	_, err = srv.store.CreateBook(&database.Book{Owner: user.ID, Title: "Vol 1"},
		nil, nil, &database.SeriesSelection{Name: "Complete", Number: 1})
	require.NoError(t, err)

	list, err := srv.store.ListSeries(user.ID)
	require.NoError(t, err)
	series := &list[0].Series
	series.TotalCount = intPtr(1)
	series.Ongoing = true
	require.NoError(t, srv.store.UpdateSeries(series))

	w := doGet(t, srv, "/ongoing", "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No gaps")
	assert.Contains(t, w.Body.String(), "Complete")
}

func TestPublicOngoingRequiresOptIn(t *testing.T) {
	srv := newTestServer(t, nil)
	user, _ := seedSeries(t, srv, false)

	// No auth header on the public route.
	w := doGet(t, srv, "/public/"+user.ID+"/ongoing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, srv.store.SetUserPublicOngoing(user.ID, true))

	w = doGet(t, srv, "/public/"+user.ID+"/ongoing", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Saga")
	assert.Contains(t, w.Body.String(), "2, 4")
}

func TestPublicOngoingUnknownUser(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doGet(t, srv, "/public/not-a-uuid/ongoing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doGet(t, srv, "/public/8f14e45f-ceea-4672-8a7f-0c1d2e3f4a5b/ongoing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileTogglesPublicOngoing(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doPost(t, srv, "/profile", "alice", url.Values{"public_ongoing": {"on"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	user, err := srv.store.GetOrCreateUser("alice")
	require.NoError(t, err)
	got, err := srv.store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.True(t, got.PublicOngoing)

	w = doPost(t, srv, "/profile", "alice", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)

	got, err = srv.store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.False(t, got.PublicOngoing)
}

func TestSeriesEditUpdatesTotalAndOngoing(t *testing.T) {
	srv := newTestServer(t, nil)
	user, series := seedSeries(t, srv, false)

	w := doPost(t, srv, "/series/"+series.ID+"/edit", "alice", url.Values{
		"name":        {"Saga Renamed"},
		"total_count": {"6"},
		"ongoing":     {"on"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)

	got, err := srv.store.GetSeriesByID(user.ID, series.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Saga Renamed", got.Name)
	require.NotNil(t, got.TotalCount)
	assert.Equal(t, 6, *got.TotalCount)
	assert.True(t, got.Ongoing)
}

func TestUnreadGroupsBySeries(t *testing.T) {
	srv := newTestServer(t, nil)

	user, err := srv.store.GetOrCreateUser("alice")
	require.NoError(t, err)
	_, err = srv.store.CreateBook(&database.Book{Owner: user.ID, Title: "Saga Vol 1"},
		nil, nil, &database.SeriesSelection{Name: "Saga", Number: 1})
	require.NoError(t, err)
	_, err = srv.store.CreateBook(&database.Book{Owner: user.ID, Title: "Standalone Novel"}, nil, nil, nil)
	require.NoError(t, err)
	_, err = srv.store.CreateBook(&database.Book{Owner: user.ID, Title: "Finished", Read: true}, nil, nil, nil)
	require.NoError(t, err)

	w := doGet(t, srv, "/unread", "alice")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Saga")
	assert.Contains(t, body, "Saga Vol 1")
	assert.Contains(t, body, "Standalone Novel")
	assert.NotContains(t, body, "Finished")
}

func TestCoverServedFromDisk(t *testing.T) {
	srv := newTestServer(t, nil)

	user, err := srv.store.GetOrCreateUser("alice")
	require.NoError(t, err)
	created, err := srv.store.CreateBook(&database.Book{Owner: user.ID, Title: "Dune"}, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, srv.saveCover(user.ID, created.ID,
		base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))))

	w := doGet(t, srv, "/covers/"+user.ID+"/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg bytes", w.Body.String())
}

func TestCoverRejectsNonUUIDSegments(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doGet(t, srv, "/covers/alice/secrets.txt", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
