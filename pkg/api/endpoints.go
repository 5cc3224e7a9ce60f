// CLAUDE:SUMMARY Transport-agnostic endpoints for text normalization, encoding repair, anomaly detection and linkage parsing.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/bibclean/pkg/anomaly"
	"github.com/hazyhaar/bibclean/pkg/kit"
	"github.com/hazyhaar/bibclean/pkg/linkage"
	"github.com/hazyhaar/bibclean/pkg/normalize"
	"github.com/hazyhaar/bibclean/pkg/repair"
)

// errInvalidRequest marks client mistakes (400). Repair and linkage
// failures are reported as 422.
var errInvalidRequest = errors.New("invalid request")

// Service holds the immutable tables the endpoints share.
type Service struct {
	Policy   normalize.Policy
	Rules    *repair.Rules
	Detector *anomaly.Detector
	Logger   *slog.Logger
}

// NewService fills unset tables with the built-in defaults.
func NewService(policy normalize.Policy, rules *repair.Rules, logger *slog.Logger) *Service {
	if rules == nil {
		rules = repair.DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Policy: policy, Rules: rules, Detector: anomaly.DefaultDetector(), Logger: logger}
}

// Shared request/response types used by both HTTP and MCP transports.

type normalizeReq struct {
	Text     string  `json:"text"`
	Form     string  `json:"form,omitempty"`
	Cyrillic *bool   `json:"cyrillic,omitempty"`
	ThaiLao  *string `json:"thai_lao,omitempty"`
	Language string  `json:"language,omitempty"`
	Script   string  `json:"script,omitempty"`
	Native   bool    `json:"native,omitempty"`
}

type normalizeResp struct {
	Text    string `json:"text"`
	Form    string `json:"form"`
	Changed bool   `json:"changed"`
}

type repairReq struct {
	Text   string `json:"text,omitempty"`
	Raw    []byte `json:"raw,omitempty"`
	Mode   string `json:"mode"`
	Script string `json:"script,omitempty"`
}

type repairResp struct {
	Text    string `json:"text,omitempty"`
	Raw     []byte `json:"raw,omitempty"`
	Changed bool   `json:"changed"`
}

type anomaliesReq struct {
	Text string `json:"text"`
}

type anomaliesResp struct {
	Clean    bool              `json:"clean"`
	Findings []anomaly.Finding `json:"findings"`
}

type linkageReq struct {
	Value string
}

type linkageResp struct {
	linkage.Descriptor
	ISOScript string `json:"iso_script,omitempty"`
	Direction string `json:"direction"`
}

type healthResp struct {
	Status  string   `json:"status"`
	Scripts []string `json:"repairable_scripts"`
	Form    string   `json:"default_form"`
}

func (s *Service) wrap(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.RequestID(), kit.Logging(s.Logger, name))(e)
}

func (s *Service) normalizeEndpoint() kit.Endpoint {
	return s.wrap("normalize", func(_ context.Context, request any) (any, error) {
		req := request.(*normalizeReq)
		p := s.Policy
		if req.Form != "" {
			f, err := normalize.ParseForm(req.Form)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
			}
			p.Form = f
		}
		if req.Cyrillic != nil {
			p.CyrillicFolding = *req.Cyrillic
		}
		if req.ThaiLao != nil {
			c, err := normalize.ParseConvention(*req.ThaiLao)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
			}
			p.ThaiLao = c
		}
		out := p.Apply(req.Text, normalize.Context{
			Language:     req.Language,
			Script:       req.Script,
			NativeScript: req.Native,
		})
		return normalizeResp{Text: out, Form: p.Form.String(), Changed: out != req.Text}, nil
	})
}

func (s *Service) repairEndpoint() kit.Endpoint {
	return s.wrap("repair", func(_ context.Context, request any) (any, error) {
		req := request.(*repairReq)
		switch req.Mode {
		case "cesu-8":
			in := req.Text
			if len(req.Raw) > 0 {
				in = string(req.Raw)
			}
			out, err := repair.ForwardCESU8(in)
			if err != nil {
				return nil, err
			}
			return repairResp{Text: out, Changed: out != in}, nil
		case "cesu-8-reverse":
			out, err := repair.ReverseCESU8(req.Text)
			if err != nil {
				return nil, err
			}
			return repairResp{Raw: []byte(out), Changed: out != req.Text}, nil
		case "marc-8":
			if req.Script == "" {
				return nil, fmt.Errorf("%w: script is required for marc-8 repair", errInvalidRequest)
			}
			out, err := s.Rules.Repair(req.Text, req.Script)
			if err != nil {
				return nil, err
			}
			return repairResp{Text: out, Changed: out != req.Text}, nil
		default:
			return nil, fmt.Errorf("%w: unknown mode %q (want cesu-8, cesu-8-reverse or marc-8)", errInvalidRequest, req.Mode)
		}
	})
}

func (s *Service) anomaliesEndpoint() kit.Endpoint {
	return s.wrap("anomalies", func(_ context.Context, request any) (any, error) {
		req := request.(*anomaliesReq)
		findings := s.Detector.Detect(req.Text).Sorted()
		return anomaliesResp{Clean: len(findings) == 0, Findings: findings}, nil
	})
}

func (s *Service) linkageEndpoint() kit.Endpoint {
	return s.wrap("linkage", func(_ context.Context, request any) (any, error) {
		req := request.(*linkageReq)
		d, err := linkage.Parse(req.Value)
		if err != nil {
			return nil, err
		}
		return linkageResp{Descriptor: d, ISOScript: d.ISOScript(), Direction: d.Direction()}, nil
	})
}
