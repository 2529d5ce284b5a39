package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/internal/indexer"
	"github.com/dshills/docrag/internal/searcher"
	"github.com/dshills/docrag/pkg/types"
)

// VectorizeRequest selects a single file or a directory to ingest
type VectorizeRequest struct {
	FilePath  string `json:"file_path"`
	Directory string `json:"directory"`
}

// SearchRequest is the body of /api/search and /api/query
type SearchRequest struct {
	Query    string                 `json:"query"`
	TopK     int                    `json:"top_k"`
	FilterBy map[string]interface{} `json:"filter_by"`
}

// ResetRequest must carry confirm=true
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// ErrorResponse is returned by every failing endpoint
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Handler serves the REST endpoints
type Handler struct {
	app *app.App
}

// NewHandler returns a Handler backed by the services of a
func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

// HandleRoot reports the service name and version
func (h *Handler) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "docrag API",
		"version": app.Version,
	})
}

// HandleHealth answers liveness checks
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleVectorize ingests a single file or a directory of PDFs
func (h *Handler) HandleVectorize(c *gin.Context) {
	var req VectorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		stats  *indexer.Statistics
		err    error
		target string
	)
	switch {
	case strings.TrimSpace(req.FilePath) != "":
		target = req.FilePath
		stats, err = h.app.Indexer.VectorizeFile(c.Request.Context(), req.FilePath)
	case strings.TrimSpace(req.Directory) != "":
		target = req.Directory
		stats, err = h.app.Indexer.VectorizeDirectory(c.Request.Context(), req.Directory)
	default:
		h.sendError(c, http.StatusBadRequest, "Either file_path or directory must be provided")
		return
	}
	if err != nil {
		h.sendFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    fmt.Sprintf("Processed %d chunks from %s", stats.ChunksCreated, target),
		"chunks":     stats.ChunksCreated,
		"statistics": stats,
	})
}

// HandleSearch returns the ranked chunks for a query
func (h *Handler) HandleSearch(c *gin.Context) {
	req, ok := h.bindSearch(c)
	if !ok {
		return
	}

	resp, err := h.app.Searcher.Search(c.Request.Context(), req)
	if err != nil {
		h.sendFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": resp.Results,
	})
}

// HandleQuery returns the numbered context and its cited sources
func (h *Handler) HandleQuery(c *gin.Context) {
	req, ok := h.bindSearch(c)
	if !ok {
		return
	}

	rc, err := h.app.Searcher.Query(c.Request.Context(), req)
	if err != nil {
		h.sendFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"context": rc.Context,
		"sources": rc.Sources,
	})
}

// HandleDocuments lists the indexed documents
func (h *Handler) HandleDocuments(c *gin.Context) {
	docs, err := h.app.Documents(c.Request.Context())
	if err != nil {
		h.sendFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"documents": docs,
	})
}

// HandleReset empties the index once the request confirms it
func (h *Handler) HandleReset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Confirm {
		h.sendError(c, http.StatusBadRequest, "Reset deletes every stored chunk; send {\"confirm\": true}")
		return
	}

	if err := h.app.Reset(c.Request.Context()); err != nil {
		h.sendFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Index reset",
	})
}

// HandleStatus reports index and pipeline statistics
func (h *Handler) HandleStatus(c *gin.Context) {
	status, err := h.app.Status(c.Request.Context())
	if err != nil {
		h.sendFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"index":  status,
	})
}

func (h *Handler) bindSearch(c *gin.Context) (searcher.SearchRequest, bool) {
	var body SearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.sendError(c, http.StatusBadRequest, "Invalid request body")
		return searcher.SearchRequest{}, false
	}
	if strings.TrimSpace(body.Query) == "" {
		h.sendError(c, http.StatusBadRequest, "query is required")
		return searcher.SearchRequest{}, false
	}
	if body.TopK == 0 {
		body.TopK = h.app.Config.TopK
	}
	if body.TopK < 1 || body.TopK > searcher.MaxTopK {
		h.sendError(c, http.StatusBadRequest, fmt.Sprintf("top_k must be between 1 and %d", searcher.MaxTopK))
		return searcher.SearchRequest{}, false
	}

	req := searcher.SearchRequest{Query: body.Query, TopK: body.TopK}
	if len(body.FilterBy) > 0 {
		req.Filter = types.Filter(body.FilterBy)
	}
	return req, true
}

// sendFailure maps pipeline errors onto HTTP status codes
func (h *Handler) sendFailure(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, indexer.ErrIngestionInProgress):
		status = http.StatusConflict
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrExtraction):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.app.Logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	h.sendError(c, status, err.Error())
}

func (h *Handler) sendError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:  "error",
		Message: message,
	})
}
