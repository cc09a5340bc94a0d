package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pathview/inkscan/internal/annostore"
	"github.com/pathview/inkscan/internal/inventory"
	"github.com/pathview/inkscan/internal/mcpserver"
)

// RunMCP serves the slide catalog tools over MCP stdio. Logs go to
// stderr so stdout stays clean for the protocol stream.
func RunMCP(cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := inventory.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init inventory: %w", err)
	}
	defer db.Close()

	if err := inventory.Sync(db, cfg.Data.TilesDir, cfg.Data.MappingFile, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	status := annostore.NewStatusStore(cfg.Data.StatusFile)

	srv := mcpserver.New(db, status, cfg.Data.TilesDir)
	logger.Info("MCP server starting on stdio")
	if err := srv.ServeStdio(); err != nil && err != io.EOF {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
