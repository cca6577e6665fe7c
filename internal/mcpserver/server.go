package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all advisory tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("advisory", "1.0.0")
	client := NewAdvisoryClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolAssessTransaction, h.HandleAssessTransaction)
	s.AddTool(ToolGetTrustScore, h.HandleGetTrustScore)
	s.AddTool(ToolClassifyIntent, h.HandleClassifyIntent)
	s.AddTool(ToolListCorridors, h.HandleListCorridors)
	s.AddTool(ToolGetCorridorVolume, h.HandleGetCorridorVolume)
	s.AddTool(ToolGetAuditLogs, h.HandleGetAuditLogs)
	s.AddTool(ToolGetDecisionSnapshot, h.HandleGetDecisionSnapshot)

	return s
}
