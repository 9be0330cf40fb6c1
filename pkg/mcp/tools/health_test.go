package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHealthTool_Listed(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(mcpServer, "test-version", nil)

	result := mcpServer.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	require.Len(t, response.Result.Tools, 1)
	assert.Equal(t, "health", response.Result.Tools[0].Name)
	assert.Equal(t, "Returns server health status and version", response.Result.Tools[0].Description)
}

func TestHealthTool_Execute(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		status   string
		database string
	}{
		{"no database", nil, "ok", "not_configured"},
		{"healthy", stubPinger{}, "ok", "ok"},
		{"unreachable", stubPinger{err: errors.New("connection refused")}, "degraded", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
			RegisterHealthTool(mcpServer, "1.2.3", tt.db)

			resp := callTool(t, context.Background(), mcpServer, "health", nil)
			require.NotNil(t, resp.Result)

			var health healthResult
			require.NoError(t, json.Unmarshal([]byte(resp.text()), &health))
			assert.Equal(t, tt.status, health.Status)
			assert.Equal(t, "1.2.3", health.Version)
			assert.Equal(t, tt.database, health.Database)
		})
	}
}
