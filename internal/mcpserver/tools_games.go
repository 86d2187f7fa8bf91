package mcpserver

import (
	"context"
	"strings"

	"zcoin/internal/gamble"

	"github.com/mark3labs/mcp-go/mcp"
)

type sessionsResponse struct {
	Items []gamble.Session `json:"items"`
}

func (s *Server) registerGameTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_sessions",
			mcp.WithDescription("List recent game sessions, newest first"),
			mcp.WithString("game", mcp.Description("slots|flip|challenge|heist")),
			mcp.WithString("state", mcp.Description("OPEN|RESOLVING|SETTLED|EXPIRED|CANCELLED")),
			mcp.WithString("account", mcp.Description("Only sessions this account takes part in")),
		),
		s.handleListSessions,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_session",
			mcp.WithDescription("Get one game session by id"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleGetSession,
	)
}

func (s *Server) handleListSessions(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := gamble.Filter{
		Game:    gamble.Game(strings.ToLower(strings.TrimSpace(request.GetString("game", "")))),
		State:   gamble.State(strings.ToUpper(strings.TrimSpace(request.GetString("state", "")))),
		Account: request.GetString("account", ""),
	}
	items := s.svc.Games.ListSessions(f)
	if items == nil {
		items = []gamble.Session{}
	}
	return toolResult(sessionsResponse{Items: items}), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	sess, svcErr := s.svc.Games.Session(ctx, id)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(sess), nil
}
