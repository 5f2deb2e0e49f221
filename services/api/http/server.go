package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/apperr"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/config"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/dataset"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/db"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/logger"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/query"
)

const (
	headerRequestID  = "X-Request-ID"
	headerTotalCount = "X-Total-Count"
	headerNextIndex  = "X-Next-Index"
	headerTruncated  = "X-Truncated"
)

// MarkerLoader materializes a dataset for the query engine.
type MarkerLoader interface {
	Load(ctx context.Context, id string) ([]query.Marker, error)
}

// Downloader issues direct download links for raw datasets.
type Downloader interface {
	DownloadURL(ctx context.Context, id string, ttl time.Duration) (*url.URL, error)
}

// Catalog lists imported datasets.
type Catalog interface {
	ListDatasets(ctx context.Context) ([]db.Dataset, error)
	GetDataset(ctx context.Context, id string) (*db.Dataset, error)
}

// Deps are the collaborators of the server. Catalog may be nil.
type Deps struct {
	Loader     MarkerLoader
	Downloader Downloader
	Catalog    Catalog
	Logger     *logger.Logger
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg     config.Config
	deps    Deps
	log     *logger.Logger
	planner *query.Planner
	engine  *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(requestLogger(deps.Logger))
	engine.Use(corsMiddleware(cfg.AllowedOrigins))

	server := &Server{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger,
		planner: query.NewPlanner(cfg.Engine),
		engine:  engine,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Original single-endpoint API: ?state=<dataset>&<filters>.
	s.engine.GET("/markers", s.handleMarkers)

	s.registerV1Routes()
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		log.WithContext(c.Request.Context()).
			HTTPRequest(c.Request.Method, path, c.Writer.Status(), float64(latency.Milliseconds()), c.ClientIP())
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{headerRequestID, headerTotalCount, headerNextIndex, headerTruncated},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// queryDataset validates the request, loads the dataset and runs the
// engine. Parameters are validated before any fetch.
func (s *Server) queryDataset(c *gin.Context, rawID string) (*query.Spec, query.Result, error) {
	id, err := dataset.NormalizeID(rawID)
	if err != nil {
		return nil, query.Result{}, err
	}

	var params query.Params
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, query.Result{}, apperr.Wrap(apperr.KindValidation, "invalid query parameters", err)
	}
	if params.Limit == "" && s.cfg.DefaultLimit > 0 {
		params.Limit = strconv.Itoa(s.cfg.DefaultLimit)
	}
	spec, err := query.ParseSpec(params)
	if err != nil {
		return nil, query.Result{}, err
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	markers, err := s.deps.Loader.Load(ctx, id)
	if err != nil {
		return spec, query.Result{}, err
	}

	res, err := s.planner.Execute(markers, spec)
	if err != nil {
		return spec, query.Result{}, err
	}
	s.log.WithContext(ctx).QueryExecuted(id, spec.Offset, len(res.Markers), res.NextIndex, res.Total, res.Truncated)
	return spec, res, nil
}

// handleMarkers serves the original endpoint: a bare JSON array with the
// pagination state in response headers.
// GET /markers?state=ca&condition=good&offset=0&limit=100
func (s *Server) handleMarkers(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		s.respondLegacyError(c, apperr.Validation("state is required").WithDetails(map[string]string{"param": "state"}))
		return
	}

	_, res, err := s.queryDataset(c, state)
	if err != nil {
		s.respondLegacyError(c, err)
		return
	}

	setPaginationHeaders(c, res)
	c.JSON(http.StatusOK, res.Markers)
}

func setPaginationHeaders(c *gin.Context, res query.Result) {
	c.Header(headerTotalCount, strconv.Itoa(res.Total))
	c.Header(headerNextIndex, strconv.Itoa(res.NextIndex))
	c.Header(headerTruncated, strconv.FormatBool(res.Truncated))
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// respondError maps domain errors to HTTP responses. Untyped errors are
// unexpected and reported as 500 without their text.
func (s *Server) respondError(c *gin.Context, err error) {
	status, body := s.classify(c, err)
	c.AbortWithStatusJSON(status, body)
}

// respondLegacyError writes the {code, message} body of the original API.
func (s *Server) respondLegacyError(c *gin.Context, err error) {
	status, body := s.classify(c, err)
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": body.Error})
}

func (s *Server) classify(c *gin.Context, err error) (int, errorResponse) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal("internal server error")
	}
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.log.WithContext(c.Request.Context()).
			HTTPError(c.Request.Method, c.Request.URL.Path, status, e.Kind.String(), err, c.ClientIP())
	}
	return status, errorResponse{Error: e.Message, Details: e.Details}
}
