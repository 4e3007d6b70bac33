package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"providence/internal/session"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

// mapSessionError reuses the control API's error codes.
func mapSessionError(err error) *mcp.CallToolResult {
	if err == nil {
		return toolError("internal_error", "unknown error")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return toolError("session_timeout", err.Error())
	}
	_, code := session.MapError(err)
	return toolError(code, err.Error())
}
