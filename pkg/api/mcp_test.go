package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/bibclean/pkg/normalize"
)

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func testMCPServer(t *testing.T) *server.MCPServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.NewMCPServer("bibclean", "test", server.WithToolCapabilities(false))
	RegisterMCPTools(srv, NewService(normalize.Policy{Form: normalize.NFC}, nil, logger))
	return srv
}

// callTool sends a tools/call message and returns the tool result.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]any) toolResult {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp := srv.HandleMessage(context.Background(), msg)
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		Result *toolResult `json:"result"`
		Error  any         `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	if envelope.Result == nil || len(envelope.Result.Content) == 0 {
		t.Fatalf("%s: no tool result: %s", name, data)
	}
	return *envelope.Result
}

func decodeText(t *testing.T, res toolResult) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Content[0].Text), &out); err != nil {
		t.Fatalf("tool text %q: %v", res.Content[0].Text, err)
	}
	return out
}

func TestMCP_Tools(t *testing.T) {
	srv := testMCPServer(t)
	tests := []struct {
		tool  string
		args  map[string]any
		key   string
		value any
	}{
		{"normalize_text", map[string]any{"text": "Ist\uFE20s\uFE21ie\u0301", "cyrillic": true, "language": "rus"}, "text", "Ist\u0361si\u00E9"},
		{"normalize_text", map[string]any{"text": "e\u0301", "form": "NFD"}, "form", "NFD"},
		{"repair_text", map[string]any{"mode": "marc-8", "script": "adlm", "text": "&#xe900;"}, "text", "\U0001E900"},
		{"repair_text", map[string]any{"mode": "cesu-8", "raw": "7aC67bSA"}, "text", "\U0001E900"},
		{"detect_anomalies", map[string]any{"text": "plain"}, "clean", true},
		{"detect_anomalies", map[string]any{"text": "x\uFFFD"}, "clean", false},
		{"parse_linkage", map[string]any{"value": "880-02/(3/r"}, "iso_script", "arab"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.tool, tt.value), func(t *testing.T) {
			res := callTool(t, srv, tt.tool, tt.args)
			if res.IsError {
				t.Fatalf("tool error: %s", res.Content[0].Text)
			}
			if out := decodeText(t, res); out[tt.key] != tt.value {
				t.Errorf("%s = %v, want %v (%v)", tt.key, out[tt.key], tt.value, out)
			}
		})
	}
}

func TestMCP_ToolErrors(t *testing.T) {
	srv := testMCPServer(t)
	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"unrepairable", "repair_text", map[string]any{"mode": "marc-8", "script": "sgnw", "text": "\uFFFD"}, "unrepairable"},
		{"bad base64", "repair_text", map[string]any{"mode": "cesu-8", "raw": "!!"}, "invalid arguments"},
		{"no input", "repair_text", map[string]any{"mode": "cesu-8"}, "text or raw is required"},
		{"invalid cesu-8", "repair_text", map[string]any{"mode": "cesu-8", "raw": "7aC6"}, "repair"},
		{"bad form", "normalize_text", map[string]any{"text": "x", "form": "NFKC"}, "invalid request"},
		{"malformed linkage", "parse_linkage", map[string]any{"value": "880"}, "malformed linkage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, srv, tt.tool, tt.args)
			if !res.IsError {
				t.Fatalf("expected tool error, got %s", res.Content[0].Text)
			}
			if !strings.Contains(res.Content[0].Text, tt.want) {
				t.Errorf("error = %q, want it to mention %q", res.Content[0].Text, tt.want)
			}
		})
	}
}
