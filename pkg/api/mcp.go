package api

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/bibclean/pkg/kit"
)

// RegisterMCPTools registers the four bibclean MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, svc *Service) {
	registerNormalize(srv, svc)
	registerRepair(srv, svc)
	registerAnomalies(srv, svc)
	registerLinkage(srv, svc)
}

func registerNormalize(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool("normalize_text",
		mcp.WithDescription("Normalize catalog text: Unicode form (NFC, NFD, NFM21), optional Cyrillic half-mark folding and Thai/Lao romanization tables."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to normalize")),
		mcp.WithString("form", mcp.Description("NFC, NFD or NFM21 (default: server setting)")),
		mcp.WithBoolean("cyrillic", mcp.Description("Fold Cyrillic ligature half marks into double diacritics")),
		mcp.WithString("thai_lao", mcp.Description("Thai/Lao romanization convention: 1997, 2011 or none")),
		mcp.WithString("language", mcp.Description("MARC language code of the record (e.g. rus, tha)")),
		mcp.WithString("script", mcp.Description("ISO 15924 script code of the field, if known")),
		mcp.WithBoolean("native", mcp.Description("True when the text is in its original, non-romanized script")),
	)

	kit.RegisterMCPTool(srv, tool, svc.normalizeEndpoint(), func(args map[string]any) (any, error) {
		r := &normalizeReq{}
		r.Text, _ = kit.StringArg(args, "text")
		r.Form, _ = kit.StringArg(args, "form")
		r.Language, _ = kit.StringArg(args, "language")
		r.Script, _ = kit.StringArg(args, "script")
		r.Native, _ = kit.BoolArg(args, "native")
		if v, ok := kit.BoolArg(args, "cyrillic"); ok {
			r.Cyrillic = &v
		}
		if v, ok := kit.StringArg(args, "thai_lao"); ok {
			r.ThaiLao = &v
		}
		return r, nil
	})
}

func registerRepair(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool("repair_text",
		mcp.WithDescription("Repair legacy numeric character references for a supplementary-plane script (marc-8 mode) or re-encode CESU-8 text."),
		mcp.WithString("text", mcp.Description("The text to repair")),
		mcp.WithString("raw", mcp.Description("Base64 bytes to repair, for cesu-8 input that is not valid UTF-8")),
		mcp.WithString("mode", mcp.Required(), mcp.Description("marc-8, cesu-8 or cesu-8-reverse")),
		mcp.WithString("script", mcp.Description("ISO 15924 script code, required for marc-8 (e.g. adlm, rohg)")),
	)

	kit.RegisterMCPTool(srv, tool, svc.repairEndpoint(), decodeRepairArgs)
}

func decodeRepairArgs(args map[string]any) (any, error) {
	r := &repairReq{}
	r.Text, _ = kit.StringArg(args, "text")
	r.Mode, _ = kit.StringArg(args, "mode")
	r.Script, _ = kit.StringArg(args, "script")
	if raw, ok := kit.StringArg(args, "raw"); ok && raw != "" {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("raw: %w", err)
		}
		r.Raw = b
	}
	if r.Text == "" && len(r.Raw) == 0 {
		return nil, errors.New("text or raw is required")
	}
	return r, nil
}

func registerAnomalies(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool("detect_anomalies",
		mcp.WithDescription("List disallowed characters in text: bidi controls, surrogates, private use, unassigned code points and known corruption markers."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to scan")),
	)

	kit.RegisterMCPTool(srv, tool, svc.anomaliesEndpoint(), func(args map[string]any) (any, error) {
		text, _ := kit.StringArg(args, "text")
		return &anomaliesReq{Text: text}, nil
	})
}

func registerLinkage(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool("parse_linkage",
		mcp.WithDescription("Parse a MARC $6 linkage value (e.g. 880-02/(3/r) into tag, occurrence, script and direction."),
		mcp.WithString("value", mcp.Required(), mcp.Description("The $6 value")),
	)

	kit.RegisterMCPTool(srv, tool, svc.linkageEndpoint(), func(args map[string]any) (any, error) {
		value, _ := kit.StringArg(args, "value")
		return &linkageReq{Value: value}, nil
	})
}
