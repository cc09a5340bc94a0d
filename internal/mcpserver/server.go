// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the slide catalog and annotation status for LLM
// integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pathview/inkscan/internal/annostore"
	"github.com/pathview/inkscan/internal/inventory"
	"github.com/pathview/inkscan/internal/pyramid"
)

// Server wraps the MCP server with slide catalog tools.
type Server struct {
	mcp      *server.MCPServer
	db       inventory.SlideIndex
	status   *annostore.StatusStore
	tilesDir string
}

// New creates a new MCP server with all tools registered.
func New(db inventory.SlideIndex, status *annostore.StatusStore, tilesDir string) *Server {
	s := &Server{db: db, status: status, tilesDir: tilesDir}

	s.mcp = server.NewMCPServer(
		"Inkscan",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_slides",
		mcp.WithDescription("List all cataloged slides with dimensions and annotation status."),
	), s.listSlides)

	s.mcp.AddTool(mcp.NewTool("get_slide_status",
		mcp.WithDescription("Get the annotation status (done, ink_found) for one slide."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Slide name (tiles directory base without _files)")),
	), s.getSlideStatus)

	s.mcp.AddTool(mcp.NewTool("set_slide_status",
		mcp.WithDescription("Set the annotation status flags for one slide."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Slide name")),
		mcp.WithBoolean("done", mcp.Required(), mcp.Description("Whether annotation of the slide is finished")),
		mcp.WithBoolean("ink_found", mcp.Required(), mcp.Description("Whether ink was found on the slide")),
	), s.setSlideStatus)

	s.mcp.AddTool(mcp.NewTool("get_pyramid_info",
		mcp.WithDescription("Get the deep-zoom pyramid metadata for one slide "+
			"(levels, recommended start level, tile grid, center offset)."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Slide name")),
	), s.getPyramidInfo)

	// Resource: snapshot format contract.
	s.mcp.AddResource(
		mcp.NewResource("inkscan://snapshot-format", "Snapshot Format Contract",
			mcp.WithResourceDescription("Canonical JSON format of annotation snapshot files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSnapshotFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSlides(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.db.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type item struct {
		Name        string  `json:"name"`
		EntryNumber int     `json:"entry_number"`
		SVSFile     string  `json:"svs_file"`
		Width       int     `json:"width"`
		Height      int     `json:"height"`
		AspectRatio float64 `json:"aspect_ratio"`
		Done        bool    `json:"done"`
		InkFound    bool    `json:"ink_found"`
	}
	items := make([]item, len(rows))
	for i, r := range rows {
		st := s.status.Get(r.Name)
		items[i] = item{
			Name:        r.Name,
			EntryNumber: r.EntryNumber,
			SVSFile:     r.SVSFile,
			Width:       r.Width,
			Height:      r.Height,
			AspectRatio: r.AspectRatio,
			Done:        st.Done,
			InkFound:    st.InkFound,
		}
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSlideStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.db.Get(name); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("slide not found: %s", name)), nil
	}
	out, _ := json.MarshalIndent(s.status.Get(name), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setSlideStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	done, err := req.RequireBool("done")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inkFound, err := req.RequireBool("ink_found")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.db.Get(name); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("slide not found: %s", name)), nil
	}
	st, err := s.status.Set(name, done, inkFound)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPyramidInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	meta, err := pyramid.ReadMetadata(pyramid.MetadataPath(s.tilesDir, name))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pyramid metadata not found: %s", name)), nil
	}
	out, _ := json.MarshalIndent(meta, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSnapshotFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "inkscan://snapshot-format",
			MIMEType: "text/markdown",
			Text:     SnapshotFormatContract,
		},
	}, nil
}
