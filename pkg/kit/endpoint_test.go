package kit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func TestChain_Order(t *testing.T) {
	var trace []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				trace = append(trace, name)
				return next(ctx, req)
			}
		}
	}
	e := Chain(mw("a"), mw("b"), mw("c"))(func(context.Context, any) (any, error) {
		trace = append(trace, "endpoint")
		return nil, nil
	})
	e(context.Background(), nil)
	if got := strings.Join(trace, ","); got != "a,b,c,endpoint" {
		t.Errorf("order = %s", got)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	e := RequestID()(func(ctx context.Context, _ any) (any, error) {
		seen = GetRequestID(ctx)
		return nil, nil
	})

	e(context.Background(), nil)
	if len(seen) != 36 {
		t.Errorf("generated id = %q", seen)
	}

	e(WithRequestID(context.Background(), "given"), nil)
	if seen != "given" {
		t.Errorf("existing id replaced: %q", seen)
	}
}

func TestLogging_PassesThrough(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	boom := errors.New("boom")
	e := Logging(logger, "repair")(func(context.Context, any) (any, error) { return nil, boom })
	if _, err := e(WithTransport(context.Background(), "mcp"), nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(buf.String(), "endpoint=repair") || !strings.Contains(buf.String(), "transport=mcp") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestRegisterMCPTool_Context(t *testing.T) {
	srv := server.NewMCPServer("test", "0", server.WithToolCapabilities(false))
	var transport, id string
	echo := func(ctx context.Context, req any) (any, error) {
		transport, id = GetTransport(ctx), GetRequestID(ctx)
		return map[string]any{"got": req}, nil
	}
	RegisterMCPTool(srv, mcp.NewTool("echo"), echo, func(args map[string]any) (any, error) {
		s, ok := StringArg(args, "value")
		if !ok {
			return nil, errors.New("value is required")
		}
		return s, nil
	})

	call := func(params string) string {
		msg := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":` + params + `}`
		data, err := json.Marshal(srv.HandleMessage(context.Background(), json.RawMessage(msg)))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	out := call(`{"name":"echo","arguments":{"value":"x"},"_meta":{"progressToken":"tok-7"}}`)
	if !strings.Contains(out, `{\"got\":\"x\"}`) {
		t.Errorf("result = %s", out)
	}
	if transport != "mcp" || id != "tok-7" {
		t.Errorf("transport = %q, request id = %q", transport, id)
	}

	out = call(`{"name":"echo","arguments":{}}`)
	if !strings.Contains(out, `"isError":true`) || !strings.Contains(out, "invalid arguments: value is required") {
		t.Errorf("decode error result = %s", out)
	}
}
