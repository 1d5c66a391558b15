// Package types defines the shared domain types for the semantic indexing
// engine: chunks, search results, indexing run results, and the sentinel
// errors exchanged between the indexer, the vector store, and the MCP layer.
package types
