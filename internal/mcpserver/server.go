package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Safeguard tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("safeguard", "1.0.0")
	client := NewSafeguardClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolLogPurchase, h.HandleLogPurchase)
	s.AddTool(ToolGetPersonRisk, h.HandleGetPersonRisk)
	s.AddTool(ToolListAlerts, h.HandleListAlerts)
	s.AddTool(ToolGetDashboardStats, h.HandleGetDashboardStats)
	s.AddTool(ToolListHighRisk, h.HandleListHighRisk)
	s.AddTool(ToolBlockPerson, h.HandleBlockPerson)

	return s
}
