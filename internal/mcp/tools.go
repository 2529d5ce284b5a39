package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docrag/internal/indexer"
	"github.com/dshills/docrag/internal/searcher"
	"github.com/dshills/docrag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeIngestionInProgress  = -32002 // Another ingestion run is already active
	ErrorCodeEmptyQuery           = -32004 // Query parameter is empty
	ErrorCodeConfirmationRequired = -32005 // Destructive operation called without confirm=true
)

// handleVectorizeDocuments handles the vectorize_documents tool invocation
func (s *Server) handleVectorizeDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	filePath := strings.TrimSpace(getStringDefault(args, "file_path", ""))
	directory := strings.TrimSpace(getStringDefault(args, "directory", ""))

	var (
		stats  *indexer.Statistics
		err    error
		target string
	)
	switch {
	case filePath != "":
		target = filePath
		stats, err = s.app.Indexer.VectorizeFile(ctx, filePath)
	case directory != "":
		target = directory
		stats, err = s.app.Indexer.VectorizeDirectory(ctx, directory)
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "either file_path or directory must be provided", map[string]interface{}{
			"param":  "file_path|directory",
			"reason": "missing or empty",
		})
	}
	if err != nil {
		return nil, toolError("vectorization failed", err)
	}

	response := map[string]interface{}{
		"status":          "success",
		"message":         fmt.Sprintf("Processed %d chunks from %s", stats.ChunksCreated, target),
		"chunks":          stats.ChunksCreated,
		"run_id":          stats.RunID,
		"files_found":     stats.FilesFound,
		"files_processed": stats.FilesProcessed,
		"files_skipped":   stats.FilesSkipped,
		"files_failed":    stats.FilesFailed,
		"duration_ms":     stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := parseSearchArgs(request)
	if err != nil {
		return nil, err
	}

	resp, err := s.app.Searcher.Search(ctx, req)
	if err != nil {
		return nil, toolError("search failed", err)
	}

	response := map[string]interface{}{
		"status":        "success",
		"results":       resp.Results,
		"total_results": resp.TotalResults,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleQueryDocuments handles the query_documents tool invocation
func (s *Server) handleQueryDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := parseSearchArgs(request)
	if err != nil {
		return nil, err
	}

	rc, err := s.app.Searcher.Query(ctx, req)
	if err != nil {
		return nil, toolError("query failed", err)
	}

	response := map[string]interface{}{
		"status":  "success",
		"context": rc.Context,
		"sources": rc.Sources,
	}

	args, _ := request.Params.Arguments.(map[string]interface{})
	if getBoolDefault(args, "format_prompt", false) {
		response["prompt"] = searcher.FormatPrompt(req.Query, rc)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListDocuments handles the list_documents tool invocation
func (s *Server) handleListDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.app.Documents(ctx)
	if err != nil {
		return nil, toolError("failed to list documents", err)
	}

	response := map[string]interface{}{
		"status":    "success",
		"documents": docs,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleResetIndex handles the reset_index tool invocation
func (s *Server) handleResetIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	if !getBoolDefault(args, "confirm", false) {
		return nil, newMCPError(ErrorCodeConfirmationRequired, "reset_index deletes every stored chunk; call again with confirm=true", map[string]interface{}{
			"param": "confirm",
		})
	}

	if err := s.app.Reset(ctx); err != nil {
		return nil, toolError("reset failed", err)
	}

	response := map[string]interface{}{
		"status":  "success",
		"message": "Index reset",
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.app.Status(ctx)
	if err != nil {
		return nil, toolError("failed to get status", err)
	}

	response := map[string]interface{}{
		"status": "success",
		"index": map[string]interface{}{
			"backend":    status.Backend,
			"collection": status.Collection,
			"documents":  status.Documents,
			"chunks":     status.Chunks,
		},
		"embedding": map[string]interface{}{
			"provider":  status.EmbeddingProvider,
			"model":     status.EmbeddingModel,
			"dimension": status.Dimension,
		},
		"health": map[string]interface{}{
			"pdf_tool_available": status.PDFToolAvailable,
			"ingestion_running":  status.IngestionRunning,
			"build_mode":         status.BuildMode,
			"sqlite_driver":      status.SQLiteDriver,
			"vector_extension":   status.VectorExtension,
		},
		"version":        status.Version,
		"uptime_seconds": int64(status.Uptime.Seconds()),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// parseSearchArgs validates the arguments shared by search_documents and query_documents
func parseSearchArgs(request mcp.CallToolRequest) (searcher.SearchRequest, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return searcher.SearchRequest{}, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return searcher.SearchRequest{}, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	// 0 lets the searcher apply the configured default
	topK := 0
	if raw, present := args["top_k"]; present && raw != nil {
		topK = getIntDefault(args, "top_k", 0)
	}
	if args["top_k"] != nil && (topK < 1 || topK > searcher.MaxTopK) {
		return searcher.SearchRequest{}, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	req := searcher.SearchRequest{Query: query, TopK: topK}
	if raw, present := args["filter_by"]; present && raw != nil {
		filter, ok := raw.(map[string]interface{})
		if !ok {
			return searcher.SearchRequest{}, newMCPError(ErrorCodeInvalidParams, "filter_by must be an object", map[string]interface{}{
				"param": "filter_by",
			})
		}
		if len(filter) > 0 {
			req.Filter = types.Filter(filter)
		}
	}
	return req, nil
}

// toolError maps pipeline errors onto MCP error codes
func toolError(message string, err error) error {
	data := map[string]interface{}{"error": err.Error()}

	switch {
	case errors.Is(err, indexer.ErrIngestionInProgress):
		return newMCPError(ErrorCodeIngestionInProgress, "an ingestion run is already in progress", data)
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", data)
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrExtraction):
		return newMCPError(ErrorCodeInvalidParams, message, data)
	default:
		return newMCPError(ErrorCodeInternalError, message, data)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
