package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up the v1 API structure
// Groups: /api/v1/datasets
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware()) // Add X-API-Version: v1 header

	// Dataset catalog and marker queries
	datasets := v1.Group("/datasets")
	{
		datasets.GET("", s.handleV1ListDatasets)
		datasets.GET("/:dataset", s.handleV1GetDataset)
		datasets.GET("/:dataset/markers", s.handleV1QueryMarkers)
		datasets.GET("/:dataset/download", s.handleV1DownloadDataset)
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
