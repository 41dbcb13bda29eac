package mcp

import (
	"context"
	"fmt"
	"sort"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

// ProbeResult is what an in-process client sees after the MCP handshake.
type ProbeResult struct {
	ServerName    string
	ServerVersion string
	Tools         []string
}

// Probe connects an in-process client, performs the initialize handshake and
// lists the registered tools. Used by doctor to verify the tool surface
// without a host.
func (s *Server) Probe(ctx context.Context) (*ProbeResult, error) {
	client, err := mcpclient.NewInProcessClient(s.mcp)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{
		Name:    protocol.ServerName + "-doctor",
		Version: fmt.Sprintf("%d", protocol.ProtocolVersion),
	}
	initRes, err := client.Initialize(ctx, initReq)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	toolsResult, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	res := &ProbeResult{
		ServerName:    initRes.ServerInfo.Name,
		ServerVersion: initRes.ServerInfo.Version,
	}
	for _, t := range toolsResult.Tools {
		res.Tools = append(res.Tools, t.Name)
	}
	sort.Strings(res.Tools)
	return res, nil
}
