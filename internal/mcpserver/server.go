// Package mcpserver exposes read-only economy queries as MCP tools.
package mcpserver

import (
	"net/http"

	"zcoin/internal/app/economy"

	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	svc *economy.Service

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(svc *economy.Service, version string) *Server {
	mcpSrv := server.NewMCPServer(
		"zcoin",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s := &Server{
		svc:        svc,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerAccountTools()
	s.registerGameTools()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}
