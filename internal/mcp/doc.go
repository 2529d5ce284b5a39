// Package mcp implements the Model Context Protocol (MCP) server for docrag.
//
// The server exposes the ingestion and retrieval pipeline to MCP clients:
//   - vectorize_documents: ingest a PDF file or a directory of PDFs
//   - search_documents: ranked chunks with cosine distances
//   - query_documents: numbered context plus deduplicated page citations
//   - list_documents: per-document chunk counts and page ranges
//   - reset_index: delete every chunk (requires confirm=true)
//   - get_status: index size, embedding provider and health
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio. Responses are written to stdout, so all
// logging goes to stderr.
//
//	docrag mcp
//
// # Tool: query_documents
//
//	Request:
//	{
//	  "name": "query_documents",
//	  "arguments": {
//	    "query": "What is the refund policy?",
//	    "top_k": 3,
//	    "filter_by": {"source": "handbook.pdf"}
//	  }
//	}
//
//	Response:
//	{
//	  "status": "success",
//	  "context": "[1] Refunds are issued within 30 days...\n\n[2] ...",
//	  "sources": [
//	    {
//	      "source": "handbook.pdf",
//	      "file_path": "data/handbook.pdf",
//	      "page": 12,
//	      "chunk_index": 41,
//	      "relevance_score": 0.83
//	    }
//	  ]
//	}
//
// Sources are unique per (source, page); context entries are not.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "docrag": {
//	      "command": "/usr/local/bin/docrag",
//	      "args": ["mcp"],
//	      "env": {
//	        "DOCRAG_DB_PATH": "/home/me/.docrag/docrag.db"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Handlers return *MCPError values which the framework turns into JSON-RPC
// errors:
//   - -32602: Invalid params (missing path, bad top_k, unknown filter key)
//   - -32603: Internal error (embedding or store failure)
//   - -32002: Ingestion already in progress
//   - -32004: Empty query
//   - -32005: Confirmation required for reset_index
package mcp
