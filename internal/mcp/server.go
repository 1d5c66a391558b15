// Package mcp exposes the indexing engine over the Model Context Protocol.
// Four tools are registered: index_codebase, index_files, search and
// get_status.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/semdex/semdex-mcp/internal/config"
	"github.com/semdex/semdex-mcp/internal/embedder"
	"github.com/semdex/semdex-mcp/internal/indexer"
	"github.com/semdex/semdex-mcp/internal/searcher"
	"github.com/semdex/semdex-mcp/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "semdex-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp      *server.MCPServer
	store    store.Store
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	embedder embedder.Embedder
}

// NewServer creates an MCP server from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := os.MkdirAll(cfg.DBPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dbFile := filepath.Join(cfg.DBPath, "semdex.db")

	st, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	mcpServer := server.NewMCPServer(ServerName, ServerVersion)

	s := &Server{
		mcp:      mcpServer,
		store:    st,
		indexer:  indexer.New(st, emb, cfg),
		searcher: searcher.New(st, emb),
		embedder: emb,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close releases the server's resources.
func (s *Server) Close() {
	_ = s.embedder.Close()
	_ = s.store.Close()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(indexFilesTool(), s.handleIndexFiles)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
