package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docrag/internal/searcher"
)

// filterSchema describes the exact-match metadata filter shared by search and query
func filterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Optional exact-match metadata filter; all keys must match",
		"properties": map[string]interface{}{
			"source": map[string]interface{}{
				"type":        "string",
				"description": "Document file name, e.g. 'handbook.pdf'",
			},
			"file_path": map[string]interface{}{
				"type":        "string",
				"description": "Path of the document at ingestion time",
			},
			"page": map[string]interface{}{
				"type":        "integer",
				"description": "1-based page number",
			},
			"chunk_index": map[string]interface{}{
				"type":        "integer",
				"description": "Position of the chunk within its document",
			},
		},
		"additionalProperties": false,
	}
}

func topKSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Number of chunks to retrieve (1-100, default: the server's configured top_k)",
		"minimum":     1,
		"maximum":     searcher.MaxTopK,
	}
}

// vectorizeDocumentsTool returns the tool definition for vectorize_documents
func vectorizeDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vectorize_documents",
		Description: "Extract, chunk and embed a PDF file or every PDF below a directory into the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to a single PDF file",
				},
				"directory": map[string]interface{}{
					"type":        "string",
					"description": "Directory searched recursively for *.pdf files",
				},
			},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over ingested documents, returning ranked chunks with distances",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"top_k":     topKSchema(),
				"filter_by": filterSchema(),
			},
			Required: []string{"query"},
		},
	}
}

// queryDocumentsTool returns the tool definition for query_documents
func queryDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_documents",
		Description: "Retrieve a numbered context block and deduplicated page citations for a question",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question to gather context for",
				},
				"top_k":     topKSchema(),
				"filter_by": filterSchema(),
				"format_prompt": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, also return the context wrapped in an answering prompt",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// listDocumentsTool returns the tool definition for list_documents
func listDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_documents",
		Description: "List ingested documents with chunk counts and page ranges",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// resetIndexTool returns the tool definition for reset_index
func resetIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reset_index",
		Description: "Delete every stored chunk. Destructive; requires confirm=true",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true to delete the index",
				},
			},
			Required: []string{"confirm"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index size, embedding provider and service health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
