package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerAccountTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_balance",
			mcp.WithDescription("Get an account's balance, lifetime totals and rank"),
			mcp.WithString("account", mcp.Required(), mcp.Description("Account id or alias")),
		),
		s.handleGetBalance,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_history",
			mcp.WithDescription("List an account's transactions, most recent first"),
			mcp.WithString("account", mcp.Required(), mcp.Description("Account id or alias")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 500")),
			mcp.WithNumber("offset", mcp.Description("Page offset, default 0")),
		),
		s.handleGetHistory,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_effective_factor",
			mcp.WithDescription("Get the combined earning multiplier and its live entries"),
			mcp.WithString("account", mcp.Required(), mcp.Description("Account id or alias")),
		),
		s.handleGetEffectiveFactor,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_streak",
			mcp.WithDescription("Get an account's presence streak"),
			mcp.WithString("account", mcp.Required(), mcp.Description("Account id or alias")),
		),
		s.handleGetStreak,
	)
}

func (s *Server) handleGetBalance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	account, err := request.RequireString("account")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.Balance(ctx, account)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	account, err := request.RequireString("account")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	limit, offset := clampPagination(request.GetInt("limit", 0), request.GetInt("offset", 0))
	resp, svcErr := s.svc.History(ctx, account, limit, offset)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetEffectiveFactor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	account, err := request.RequireString("account")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.Factor(ctx, account)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetStreak(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	account, err := request.RequireString("account")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.Streak(ctx, account)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}
