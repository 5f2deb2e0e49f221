package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/dataset"
)

// handleV1QueryMarkers filters, projects and pages one dataset
// GET /api/v1/datasets/:dataset/markers?condition=good&location=37.5,-122.2&radius=10&offset=0
func (s *Server) handleV1QueryMarkers(c *gin.Context) {
	spec, res, err := s.queryDataset(c, c.Param("dataset"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	setPaginationHeaders(c, res)
	c.JSON(http.StatusOK, gin.H{
		"data": res.Markers,
		"meta": gin.H{
			"count":      len(res.Markers),
			"total":      res.Total,
			"next_index": res.NextIndex,
			"truncated":  res.Truncated,
			"offset":     spec.Offset,
		},
	})
}

// handleV1DownloadDataset redirects to a short-lived link for the raw
// dataset so large files bypass the API.
// GET /api/v1/datasets/:dataset/download
func (s *Server) handleV1DownloadDataset(c *gin.Context) {
	id, err := dataset.NormalizeID(c.Param("dataset"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	u, err := s.deps.Downloader.DownloadURL(ctx, id, s.cfg.DownloadURLTTL)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, u.String())
}
