package mcpserver

import (
	"context"
	"strconv"
	"strings"

	"providence/internal/hostmsg"
	"providence/internal/session"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerLobbyTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_session_status",
			mcp.WithDescription("Connection status, pending requests, current lobby, ack request and game starter"),
		),
		s.handleStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"search_lobbies",
			mcp.WithDescription("Request a page of lobbies; the result lands in get_session_status lobby_page"),
			mcp.WithString("name_filter", mcp.Description("Optional name substring")),
			mcp.WithNumber("page_size", mcp.Description("Page size, default 20, max 100")),
			mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
		),
		s.handleSearchLobbies,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"make_lobby",
			mcp.WithDescription("Create a lobby and join it"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Lobby name")),
			mcp.WithNumber("max_players", mcp.Required(), mcp.Description("Seat count")),
			mcp.WithString("password", mcp.Description("Optional lobby password")),
		),
		s.handleMakeLobby,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"join_lobby",
			mcp.WithDescription("Join an existing lobby"),
			mcp.WithString("lobby_id", mcp.Required(), mcp.Description("Lobby id")),
			mcp.WithString("password", mcp.Description("Lobby password if set")),
		),
		s.handleJoinLobby,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"leave_lobby",
			mcp.WithDescription("Leave the current lobby"),
		),
		s.handleLeaveLobby,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"launch_lobby",
			mcp.WithDescription("Ask the host to launch the current lobby"),
		),
		s.handleLaunchLobby,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"ack_lobby",
			mcp.WithDescription("Accept the pending lobby ack request"),
		),
		s.handleAckLobby,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"nack_lobby",
			mcp.WithDescription("Decline the pending lobby ack request"),
		),
		s.handleNackLobby,
	)
}

func (s *Server) handleStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metricToolCalls.Add(1)
	return toolResult(s.ctrl.Snapshot()), nil
}

func (s *Server) handleSearchLobbies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := hostmsg.LobbySearchRequest{
		NameFilter: strings.TrimSpace(request.GetString("name_filter", "")),
		PageSize:   clampPageSize(request.GetInt("page_size", defaultPageSize)),
		Cursor:     request.GetString("cursor", ""),
	}
	return s.submit(ctx, session.SearchLobbiesCommand{Request: req}), nil
}

func (s *Server) handleMakeLobby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	maxPlayers, err := request.RequireFloat("max_players")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	return s.submit(ctx, session.MakeLobbyCommand{
		Name:       strings.TrimSpace(name),
		MaxPlayers: int(maxPlayers),
		Password:   request.GetString("password", ""),
	}), nil
}

func (s *Server) handleJoinLobby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("lobby_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return toolError("invalid_lobby_id", "lobby_id must be a positive integer"), nil
	}
	return s.submit(ctx, session.JoinLobbyCommand{
		LobbyID:  hostmsg.LobbyID(id),
		Password: request.GetString("password", ""),
	}), nil
}

func (s *Server) handleLeaveLobby(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.submit(ctx, session.LeaveLobbyCommand{}), nil
}

func (s *Server) handleLaunchLobby(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.submit(ctx, session.LaunchLobbyCommand{}), nil
}

func (s *Server) handleAckLobby(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.submit(ctx, session.AckLobbyCommand{}), nil
}

func (s *Server) handleNackLobby(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.submit(ctx, session.NackLobbyCommand{}), nil
}
