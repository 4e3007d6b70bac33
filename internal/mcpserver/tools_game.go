package mcpserver

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"providence/internal/hostmsg"
	"providence/internal/session"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerGameTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"start_local_game",
			mcp.WithDescription("Start a local game instance; refused while a game runs or a host game is pending"),
			mcp.WithString("game_id", mcp.Description("Optional game id; assigned when omitted")),
			mcp.WithString("config_json", mcp.Description("Optional launch configuration as a JSON document")),
		),
		s.handleStartLocalGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"end_game",
			mcp.WithDescription("End the running game"),
		),
		s.handleEndGame,
	)
}

func (s *Server) handleStartLocalGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var pack session.LaunchPack
	if raw := strings.TrimSpace(request.GetString("game_id", "")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return toolError("invalid_request", "game_id must be an unsigned integer"), nil
		}
		pack.GameID = hostmsg.GameID(id)
	}
	if raw := strings.TrimSpace(request.GetString("config_json", "")); raw != "" {
		if !json.Valid([]byte(raw)) {
			return toolError("invalid_request", "config_json is not valid JSON"), nil
		}
		pack.Config = json.RawMessage(raw)
	}
	return s.submit(ctx, session.StartLocalGameCommand{Pack: pack}), nil
}

func (s *Server) handleEndGame(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.submit(ctx, session.EndGameCommand{}), nil
}
