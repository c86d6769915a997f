// file: internal/server/report_service.go
// version: 1.2.0
// guid: 6f0d4b8c-2e5a-4d9f-b3c7-0a1e8f4d6c95

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookloft/internal/database"
)

// missingSeries is a series with volumes still to acquire.
type missingSeries struct {
	database.SeriesWithCount
	MissingVolumes []int
}

// ongoingReport splits a user's series into those with gaps and those fully
// owned but still being published.
type ongoingReport struct {
	Missing  []missingSeries
	UpToDate []database.SeriesWithCount
}

// buildOngoingReport computes, per series with a known total, the volume
// numbers in 1..total not yet owned. Fully owned ongoing series are listed
// separately as "waiting for the next volume".
func (s *Server) buildOngoingReport(ownerID string) (*ongoingReport, error) {
	series, err := s.store.ListSeries(ownerID)
	if err != nil {
		return nil, err
	}

	report := &ongoingReport{}
	for _, entry := range series {
		if entry.TotalCount == nil {
			if entry.Ongoing {
				report.UpToDate = append(report.UpToDate, entry)
			}
			continue
		}

		volumes, err := s.store.GetSeriesVolumes(entry.ID)
		if err != nil {
			return nil, err
		}
		owned := make(map[int]bool, len(volumes))
		for _, n := range volumes {
			owned[n] = true
		}

		var missing []int
		for n := 1; n <= *entry.TotalCount; n++ {
			if !owned[n] {
				missing = append(missing, n)
			}
		}

		if len(missing) > 0 {
			report.Missing = append(report.Missing, missingSeries{
				SeriesWithCount: entry,
				MissingVolumes:  missing,
			})
		} else if entry.Ongoing {
			report.UpToDate = append(report.UpToDate, entry)
		}
	}
	return report, nil
}

// handleOngoing renders the authenticated user's ongoing-series report.
func (s *Server) handleOngoing(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	report, err := s.buildOngoingReport(user.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to build ongoing report", err)
		return
	}

	c.HTML(http.StatusOK, "ongoing.html", gin.H{
		"User":   user,
		"Report": report,
		"Owner":  user,
		"Public": false,
	})
}

// handlePublicOngoing renders another user's ongoing report, without auth,
// when that user opted in on their profile page.
func (s *Server) handlePublicOngoing(c *gin.Context) {
	id := c.Param("user")
	if _, err := uuid.Parse(id); err != nil {
		renderNotFound(c, "page")
		return
	}

	owner, err := s.store.GetUserByID(id)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to load user", err)
		return
	}
	if owner == nil || !owner.PublicOngoing {
		renderNotFound(c, "page")
		return
	}

	report, err := s.buildOngoingReport(owner.ID)
	if err != nil {
		renderError(c, http.StatusInternalServerError, "failed to build ongoing report", err)
		return
	}

	c.HTML(http.StatusOK, "ongoing.html", gin.H{
		"User":   nil,
		"Report": report,
		"Owner":  owner,
		"Public": true,
	})
}
