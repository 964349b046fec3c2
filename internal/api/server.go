package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"compstat/internal/completeness"
	"compstat/internal/models"
	"compstat/internal/runs"
	"compstat/internal/workflows"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LedgerReader interface {
	GetByDOI(ctx context.Context, doi string) (models.LedgerRow, bool, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}

type SummaryReader interface {
	ListSummary(ctx context.Context) ([]models.SummaryRow, error)
}

type RunStarter interface {
	StartHarvest(ctx context.Context, in workflows.HarvestInput) (runs.Run, error)
	StartRetry(ctx context.Context, in workflows.RetryInput) (runs.Run, error)
	StartCompleteness(ctx context.Context, in workflows.CompletenessInput) (runs.Run, error)
	StartLoadClassic(ctx context.Context) (runs.Run, error)
	Progress(ctx context.Context, workflowID string) (workflows.RunProgress, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	ledger  LedgerReader
	summary SummaryReader
	runs    RunStarter
	db      Pinger
	metrics http.Handler
	logger  *zap.Logger
}

func NewServer(ledger LedgerReader, summary SummaryReader, starter RunStarter, db Pinger, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{ledger: ledger, summary: summary, runs: starter, db: db, metrics: metrics, logger: logger}
}

func (s *Server) Routes() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), withCORS())

	router.GET("/healthz", s.handleHealthz)
	router.GET("/ledger", s.handleLedger)
	router.GET("/ledger/stats", s.handleLedgerStats)
	router.GET("/completeness", s.handleCompleteness)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	r := router.Group("/runs")
	r.POST("/harvest", s.handleStartHarvest)
	r.POST("/retry", s.handleStartRetry)
	r.POST("/completeness", s.handleStartCompleteness)
	r.POST("/classic", s.handleStartClassic)
	r.GET("/:id/progress", s.handleProgress)
	return router
}

func (s *Server) handleHealthz(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			writeErr(c, http.StatusServiceUnavailable, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleLedger(c *gin.Context) {
	doi := strings.TrimSpace(c.Query("doi"))
	if doi == "" {
		writeErr(c, http.StatusBadRequest, fmt.Errorf("doi is required"))
		return
	}
	row, ok, err := s.ledger.GetByDOI(c.Request.Context(), doi)
	if err != nil {
		writeErr(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeErr(c, http.StatusNotFound, fmt.Errorf("no ledger row for doi %s", doi))
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) handleLedgerStats(c *gin.Context) {
	counts, err := s.ledger.CountByStatus(c.Request.Context())
	if err != nil {
		writeErr(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"by_status": counts})
}

// handleCompleteness serves the export document by default and the raw
// per-volume summary rows with ?format=rows.
func (s *Server) handleCompleteness(c *gin.Context) {
	rows, err := s.summary.ListSummary(c.Request.Context())
	if err != nil {
		writeErr(c, http.StatusInternalServerError, err)
		return
	}
	if c.Query("format") == "rows" {
		c.JSON(http.StatusOK, gin.H{"rows": rows})
		return
	}
	c.JSON(http.StatusOK, completeness.BuildDocument(rows))
}

func (s *Server) handleStartHarvest(c *gin.Context) {
	var req workflows.HarvestInput
	if !bindOptional(c, &req) {
		return
	}
	// Log discovery is server-side configuration.
	req.LogDir = ""
	s.respondRun(c, "harvest", func(ctx context.Context) (runs.Run, error) { return s.runs.StartHarvest(ctx, req) })
}

func (s *Server) handleStartRetry(c *gin.Context) {
	var req workflows.RetryInput
	if !bindOptional(c, &req) {
		return
	}
	s.respondRun(c, "retry", func(ctx context.Context) (runs.Run, error) { return s.runs.StartRetry(ctx, req) })
}

func (s *Server) handleStartCompleteness(c *gin.Context) {
	var req workflows.CompletenessInput
	if !bindOptional(c, &req) {
		return
	}
	s.respondRun(c, "completeness", func(ctx context.Context) (runs.Run, error) { return s.runs.StartCompleteness(ctx, req) })
}

func (s *Server) handleStartClassic(c *gin.Context) {
	s.respondRun(c, "load-classic", s.runs.StartLoadClassic)
}

func (s *Server) handleProgress(c *gin.Context) {
	prog, err := s.runs.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, prog)
}

func (s *Server) respondRun(c *gin.Context, kind string, start func(context.Context) (runs.Run, error)) {
	run, err := start(c.Request.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, runs.ErrAlreadyRunning) {
			code = http.StatusConflict
		}
		s.logger.Warn("start run failed", zap.String("kind", kind), zap.Error(err))
		writeErr(c, code, err)
		return
	}
	s.logger.Info("run started", zap.String("kind", kind), zap.String("workflow_id", run.WorkflowID))
	c.JSON(http.StatusAccepted, run)
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		writeErr(c, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return false
	}
	return true
}

func withCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func writeErr(c *gin.Context, code int, err error) {
	apiErr := toAPIError(code, err)
	c.AbortWithStatusJSON(code, gin.H{
		"error": gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "CS-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusServiceUnavailable:
		return apiError{
			Code:    "CS-DB-5030",
			Message: "Database connection is unavailable. Check local services and retry.",
		}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "CS-DB-5001",
				Message: "Database schema is not initialized. Start the worker once and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "CS-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "CS-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "CS-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "CS-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "CS-API-4009"
		msg = "A run of this kind is already in progress."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "doi is required"):
			msg = "The doi query parameter is required."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}
