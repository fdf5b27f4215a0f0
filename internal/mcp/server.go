package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/sos/internal/emergency"
	"github.com/joescharf/sos/internal/guidance"
	"github.com/joescharf/sos/internal/models"
	"github.com/joescharf/sos/internal/store"
)

// locationWait bounds how long sos_request_location waits for a fix.
const locationWait = 20 * time.Second

// Sessions is the part of the session machine the tools drive.
type Sessions interface {
	CurrentSession() models.EmergencySession
	Start(ctx context.Context, hint models.Category, description string) (models.EmergencySession, error)
	Update(ctx context.Context, description string) (models.EmergencySession, error)
	End(ctx context.Context) (models.EmergencySession, error)
}

// Server exposes the emergency session as MCP tools.
type Server struct {
	sessions Sessions
	locator  emergency.Locator
	archive  store.Store
	version  string
}

// NewServer creates the MCP server wrapper. locator and archive may be nil.
func NewServer(sessions Sessions, locator emergency.Locator, archive store.Store, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{
		sessions: sessions,
		locator:  locator,
		archive:  archive,
		version:  version,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("sos", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.startEmergencyTool())
	srv.AddTool(s.updateEmergencyTool())
	srv.AddTool(s.endEmergencyTool())
	srv.AddTool(s.sessionStatusTool())
	srv.AddTool(s.guidanceTool())
	srv.AddTool(s.requestLocationTool())
	if s.archive != nil {
		srv.AddTool(s.incidentHistoryTool())
	}

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// sos_start_emergency
func (s *Server) startEmergencyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sos_start_emergency",
		mcp.WithDescription("Start an emergency session. Supply a free-text description, a category, or both. Starting while a session is active returns the active session unchanged."),
		mcp.WithString("description", mcp.Description("What is happening, in the caller's words")),
		mcp.WithString("category", mcp.Description("Category hint"),
			mcp.Enum("medical", "fire", "police", "natural_disaster", "accident", "unknown")),
	)
	return tool, s.handleStartEmergency
}

func (s *Server) handleStartEmergency(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := request.GetString("category", "")
	var hint models.Category
	if raw != "" {
		c, ok := models.ParseCategory(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s", raw)), nil
		}
		hint = c
	}

	session, err := s.sessions.Start(ctx, hint, request.GetString("description", ""))
	if err != nil {
		return sessionError("start emergency", err), nil
	}
	return jsonResult(session)
}

// sos_update_emergency
func (s *Server) updateEmergencyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sos_update_emergency",
		mcp.WithDescription("Add details to the active emergency. The whole report is re-classified and guidance is refreshed."),
		mcp.WithString("description", mcp.Required(), mcp.Description("New details")),
	)
	return tool, s.handleUpdateEmergency
}

func (s *Server) handleUpdateEmergency(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: description"), nil
	}

	session, err := s.sessions.Update(ctx, description)
	if err != nil {
		return sessionError("update emergency", err), nil
	}
	return jsonResult(session)
}

// sos_end_emergency
func (s *Server) endEmergencyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sos_end_emergency",
		mcp.WithDescription("Resolve the active emergency. Does nothing when no emergency is active."),
	)
	return tool, s.handleEndEmergency
}

func (s *Server) handleEndEmergency(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := s.sessions.End(ctx)
	if err != nil {
		return sessionError("end emergency", err), nil
	}
	return jsonResult(session)
}

// sos_session_status
func (s *Server) sessionStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sos_session_status",
		mcp.WithDescription("Get the current emergency session: status, category, guidance, location and history."),
	)
	return tool, s.handleSessionStatus
}

func (s *Server) handleSessionStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sessions.CurrentSession())
}

// sos_guidance
func (s *Server) guidanceTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sos_guidance",
		mcp.WithDescription("Get safety steps for an emergency category, or search the first-aid library with query."),
		mcp.WithString("category", mcp.Description("Emergency category")),
		mcp.WithString("query", mcp.Description("First-aid search, e.g. 'burn' or 'cpr'")),
	)
	return tool, s.handleGuidance
}

func (s *Server) handleGuidance(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if q := request.GetString("query", ""); q != "" {
		guides := guidance.Search(q)
		if len(guides) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No first-aid guides match %q.", q)), nil
		}
		return jsonResult(guides)
	}

	raw := request.GetString("category", "")
	if raw == "" {
		return mcp.NewToolResultError("provide category or query"), nil
	}
	c, ok := models.ParseCategory(raw)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s", raw)), nil
	}

	type guidanceOut struct {
		Category models.Category `json:"category"`
		Label    string          `json:"label"`
		Steps    []string        `json:"steps"`
	}
	return jsonResult(guidanceOut{Category: c, Label: c.Label(), Steps: guidance.For(c)})
}

// sos_request_location
func (s *Server) requestLocationTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sos_request_location",
		mcp.WithDescription("Request the device location and wait for the result. Returns the location state including any failure reason."),
	)
	return tool, s.handleRequestLocation
}

func (s *Server) handleRequestLocation(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.locator == nil {
		return mcp.NewToolResultError("location is disabled"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, locationWait)
	defer cancel()
	select {
	case <-s.locator.RequestLocation(ctx):
	case <-ctx.Done():
		return mcp.NewToolResultError("location request did not complete in time"), nil
	}
	return jsonResult(s.locator.Snapshot())
}

// sos_incident_history
func (s *Server) incidentHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sos_incident_history",
		mcp.WithDescription("List archived incidents, newest first, or fetch one incident with its events by id."),
		mcp.WithString("id", mcp.Description("Incident ID")),
		mcp.WithNumber("limit", mcp.Description("Maximum incidents to list (default 20)")),
	)
	return tool, s.handleIncidentHistory
}

func (s *Server) handleIncidentHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := request.GetString("id", ""); id != "" {
		inc, err := s.archive.GetIncident(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("incident not found: %s", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get incident: %v", err)), nil
		}
		return jsonResult(inc)
	}

	incidents, err := s.archive.ListIncidents(ctx, request.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list incidents: %v", err)), nil
	}
	if incidents == nil {
		incidents = []*models.Incident{}
	}
	return jsonResult(incidents)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func sessionError(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, emergency.ErrInvalidInput):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v. Describe the emergency or pick a category.", action, err))
	case errors.Is(err, emergency.ErrInvalidState):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v. Start an emergency first.", action, err))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, err))
	}
}
