package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"providence/internal/session"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	commandTimeout  = 5 * time.Second
	statusURI       = "session://status"
	recentEventsURI = "session://events/recent"
	recentEvents    = 50
)

// Control is the part of session.Session exposed as MCP tools.
type Control interface {
	Submit(ctx context.Context, cmd session.Command) (session.CommandResult, error)
	Snapshot() session.Snapshot
	Events() *session.EventBuffer
}

type Server struct {
	ctrl Control

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(ctrl Control) *Server {
	mcpSrv := server.NewMCPServer(
		"providence",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		ctrl:       ctrl,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerLobbyTools()
	s.registerGameTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(
			statusURI,
			"session_status",
			mcp.WithResourceDescription("Connection status, pending requests, ack request and game starter"),
			mcp.WithMIMEType("application/json"),
		),
		func(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return jsonResource(statusURI, s.ctrl.Snapshot())
		},
	)
	s.mcpServer.AddResource(
		mcp.NewResource(
			recentEventsURI,
			"session_recent_events",
			mcp.WithResourceDescription("Most recent session events, oldest first"),
			mcp.WithMIMEType("application/json"),
		),
		func(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			events := s.ctrl.Events().ReplayAfter("")
			if len(events) > recentEvents {
				events = events[len(events)-recentEvents:]
			}
			return jsonResource(recentEventsURI, events)
		},
	)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(payload),
		},
	}, nil
}

func (s *Server) submit(ctx context.Context, cmd session.Command) *mcp.CallToolResult {
	metricToolCalls.Add(1)
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	res, err := s.ctrl.Submit(ctx, cmd)
	if err != nil {
		metricToolErrors.Add(1)
		return mapSessionError(err)
	}
	return toolResult(res)
}
