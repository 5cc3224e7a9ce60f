package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hazyhaar/bibclean/pkg/kit"
	"github.com/hazyhaar/bibclean/pkg/linkage"
	"github.com/hazyhaar/bibclean/pkg/repair"
)

// NewRouter returns an http.Handler with all bibclean API routes.
func NewRouter(svc *Service) http.Handler {
	mux := http.NewServeMux()
	h := &handler{
		normalize: svc.normalizeEndpoint(),
		repair:    svc.repairEndpoint(),
		anomalies: svc.anomaliesEndpoint(),
		linkage:   svc.linkageEndpoint(),
		svc:       svc,
	}

	mux.HandleFunc("POST /v1/normalize", h.handleNormalize)
	mux.HandleFunc("POST /v1/repair", h.handleRepair)
	mux.HandleFunc("POST /v1/anomalies", h.handleAnomalies)
	mux.HandleFunc("GET /v1/linkage/{value...}", h.handleLinkage)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(mux)
}

type handler struct {
	normalize kit.Endpoint
	repair    kit.Endpoint
	anomalies kit.Endpoint
	linkage   kit.Endpoint
	svc       *Service
}

// --- normalize ---

func (h *handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeReq
	if !decodeBody(w, r, &req) {
		return
	}
	h.serve(w, r, h.normalize, &req)
}

// --- repair ---

func (h *handler) handleRepair(w http.ResponseWriter, r *http.Request) {
	var req repairReq
	if !decodeBody(w, r, &req) {
		return
	}
	h.serve(w, r, h.repair, &req)
}

// --- anomalies ---

func (h *handler) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	var req anomaliesReq
	if !decodeBody(w, r, &req) {
		return
	}
	h.serve(w, r, h.anomalies, &req)
}

// --- linkage ---

func (h *handler) handleLinkage(w http.ResponseWriter, r *http.Request) {
	value := r.PathValue("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing linkage value")
		return
	}
	h.serve(w, r, h.linkage, &linkageReq{Value: value})
}

// --- health ---

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{
		Status:  "ok",
		Scripts: h.svc.Rules.Scripts(),
		Form:    h.svc.Policy.Form.String(),
	})
}

// --- helpers ---

func (h *handler) serve(w http.ResponseWriter, r *http.Request, e kit.Endpoint, req any) {
	ctx := kit.WithTransport(r.Context(), "http")
	if id := r.Header.Get("X-Request-ID"); id != "" {
		ctx = kit.WithRequestID(ctx, id)
	}
	resp, err := e(ctx, req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, linkage.ErrMalformedLinkage),
		errors.Is(err, repair.ErrEncodingRepair),
		errors.Is(err, repair.ErrUnrepairable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
