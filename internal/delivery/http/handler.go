package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storepulse/backend/internal/domain"
	"github.com/storepulse/backend/internal/usecase"
	"go.uber.org/zap"
)

// ExportJobHeader carries the id of the export job enqueued for a request.
const ExportJobHeader = "X-Export-Job"

// CatalogService is the request-scoped surface the handlers need.
type CatalogService interface {
	Search(ctx context.Context, term, country string, limit int) (*domain.StorePair, string, error)
	Collection(ctx context.Context, collection, country string, limit int) (*domain.StorePair, string, error)
	Similar(ctx context.Context, appName, country string) (*domain.StorePair, string, error)
}

// JobRegistry exposes export job state for polling.
type JobRegistry interface {
	Job(id string) (usecase.ExportJob, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	catalog        CatalogService
	jobs           JobRegistry
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. jobs may be nil when the export
// worker is disabled.
func NewHandler(catalog CatalogService, jobs JobRegistry, requestTimeout time.Duration, logger *zap.Logger) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &Handler{
		catalog:        catalog,
		jobs:           jobs,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "storepulse-backend",
		"version": "1.0.0",
	})
}

// Search handles GET /search?term=...&num=...&country=...
func (h *Handler) Search(c *gin.Context) {
	term := c.Query("term")
	num, numOK := parseNum(c.Query("num"))
	if term == "" || !numOK {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing term or num parameter"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	pair, jobID, err := h.catalog.Search(ctx, term, c.Query("country"), num)
	h.respond(c, pair, jobID, err)
}

// Collection handles GET /collection?collection=...&country=...&num=...
func (h *Handler) Collection(c *gin.Context) {
	collection := c.Query("collection")
	country := c.Query("country")
	num, numOK := parseNum(c.Query("num"))
	if collection == "" || country == "" || !numOK {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing collection, country or num parameter"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	pair, jobID, err := h.catalog.Collection(ctx, collection, country, num)
	h.respond(c, pair, jobID, err)
}

// Similar handles GET /similar?appName=...&country=...
func (h *Handler) Similar(c *gin.Context) {
	appName := c.Query("appName")
	country := c.Query("country")
	if appName == "" || country == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing appName or country parameter"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	pair, jobID, err := h.catalog.Similar(ctx, appName, country)
	h.respond(c, pair, jobID, err)
}

// ExportJob handles GET /exports/:id
func (h *Handler) ExportJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "export worker disabled"})
		return
	}

	job, err := h.jobs.Job(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// respond writes the shared pipeline result. The export job id travels in a
// header so the body stays exactly the two result arrays.
func (h *Handler) respond(c *gin.Context, pair *domain.StorePair, jobID string, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid parameters"})
			return
		}
		h.logger.Error("catalog request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching app details"})
		return
	}

	if jobID != "" {
		c.Header(ExportJobHeader, jobID)
	}
	c.JSON(http.StatusOK, pair)
}

// parseNum parses the num query parameter; only positive integers are valid.
func parseNum(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
