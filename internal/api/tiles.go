package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// tilePathRe matches pyramid tile requests (<base>_files/<level>/<col>_<row>.png).
// Viewers probe past the grid edge at the deepest levels, so 404s on
// these paths are expected and logged at debug only.
var tilePathRe = regexp.MustCompile(`_files/\d+/\d+_\d+\.png$`)

// TileHandler serves DZI descriptors, pyramid tiles and metadata
// sidecars from the tiles root.
type TileHandler struct {
	tilesDir string
	logger   *slog.Logger
}

// NewTileHandler creates a handler rooted at the tiles directory.
func NewTileHandler(tilesDir string, logger *slog.Logger) *TileHandler {
	return &TileHandler{tilesDir: tilesDir, logger: logger}
}

// safePath validates the request path (no traversal, no absolute
// components) and returns the absolute path under the tiles root.
func (h *TileHandler) safePath(reqPath string) (string, error) {
	if reqPath == "" {
		return "", fmt.Errorf("path is required")
	}
	cleaned := filepath.Clean("/" + reqPath)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path: %s", reqPath)
	}
	abs := filepath.Join(h.tilesDir, cleaned)
	root := filepath.Clean(h.tilesDir)
	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) && abs != root {
		return "", fmt.Errorf("path escapes tiles directory")
	}
	return abs, nil
}

// ServeFile handles GET /dzi/*.
func (h *TileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	reqPath := strings.TrimPrefix(r.URL.Path, "/dzi/")
	abs, err := h.safePath(reqPath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if info, statErr := os.Stat(abs); statErr != nil || info.IsDir() {
		if tilePathRe.MatchString(reqPath) {
			h.logger.Debug("missing edge tile", slog.String("path", reqPath))
		} else {
			h.logger.Warn("tile file not found", slog.String("path", reqPath))
		}
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
