package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/apperr"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/dataset"
)

var errCatalogDisabled = apperr.NotFound("dataset catalog is not configured")

// handleV1ListDatasets returns all imported datasets
// GET /api/v1/datasets
func (s *Server) handleV1ListDatasets(c *gin.Context) {
	if s.deps.Catalog == nil {
		s.respondError(c, errCatalogDisabled)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	datasets, err := s.deps.Catalog.ListDatasets(ctx)
	if err != nil {
		s.respondError(c, apperr.Wrap(apperr.KindInternal, "list datasets", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": datasets,
		"meta": gin.H{
			"count": len(datasets),
		},
	})
}

// handleV1GetDataset returns catalog details for one dataset
// GET /api/v1/datasets/:dataset
func (s *Server) handleV1GetDataset(c *gin.Context) {
	if s.deps.Catalog == nil {
		s.respondError(c, errCatalogDisabled)
		return
	}

	id, err := dataset.NormalizeID(c.Param("dataset"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	d, err := s.deps.Catalog.GetDataset(ctx, id)
	if err != nil {
		s.respondError(c, apperr.Wrap(apperr.KindInternal, "get dataset", err))
		return
	}
	if d == nil {
		s.respondError(c, apperr.NotFound(fmt.Sprintf("dataset %s not found", id)).
			WithDetails(map[string]string{"dataset": id}))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": d,
	})
}
