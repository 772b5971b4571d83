// Package api serves a read-mostly admin view of the node pools over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/guileen/nodepool/logger"
	"github.com/guileen/nodepool/pool"
	"github.com/guileen/nodepool/registry"
)

// Pools is the part of the registry the admin API reads.
type Pools interface {
	Nodes() []string
	Pool(node string) (*pool.Pool, error)
	Skipped() map[string]error
	GetConnection(ctx context.Context, node string) (*pool.PooledConn, error)
}

var _ Pools = (*registry.Registry)(nil)

type AdminHandler struct {
	pools       Pools
	pingTimeout time.Duration
}

func NewAdminHandler(pools Pools) *AdminHandler {
	return &AdminHandler{
		pools:       pools,
		pingTimeout: 5 * time.Second,
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Route("/nodes", func(r chi.Router) {
		r.Get("/", h.ListNodes)
		r.Get("/{node}", h.GetNode)
		r.Post("/{node}/ping", h.PingNode)
	})
}

type NodesResponse struct {
	Nodes   []pool.Stats  `json:"nodes"`
	Skipped []SkippedNode `json:"skipped,omitempty"`
}

type SkippedNode struct {
	Node  string `json:"node"`
	Error string `json:"error"`
}

type PingResponse struct {
	Node    string `json:"node"`
	Latency string `json:"latency"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Nodes  int    `json:"nodes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports ok while at least one pool is active.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	active := 0
	for _, node := range h.pools.Nodes() {
		if p, err := h.pools.Pool(node); err == nil && p.IsActive() {
			active++
		}
	}
	if active == 0 {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Nodes: active})
}

func (h *AdminHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	var resp NodesResponse
	resp.Nodes = make([]pool.Stats, 0)
	for _, node := range h.pools.Nodes() {
		p, err := h.pools.Pool(node)
		if err != nil {
			continue
		}
		resp.Nodes = append(resp.Nodes, p.Stats())
	}

	for node, err := range h.pools.Skipped() {
		resp.Skipped = append(resp.Skipped, SkippedNode{Node: node, Error: err.Error()})
	}
	sort.Slice(resp.Skipped, func(i, j int) bool {
		return resp.Skipped[i].Node < resp.Skipped[j].Node
	})

	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node := chi.URLParam(r, "node")
	p, err := h.pools.Pool(node)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p.Stats())
}

// PingNode checks out a connection from the node, pings it and returns it.
func (h *AdminHandler) PingNode(w http.ResponseWriter, r *http.Request) {
	node := chi.URLParam(r, "node")
	ctx, cancel := context.WithTimeout(r.Context(), h.pingTimeout)
	defer cancel()
	if id := middleware.GetReqID(ctx); id != "" {
		ctx = logger.WithContextValue(ctx, logger.RequestIDKey, id)
	}

	start := time.Now()
	conn, err := h.pools.GetConnection(ctx, node)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		logger.WarnContext(ctx, "node ping failed", logger.Node(node), logger.ErrorField(err))
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, PingResponse{Node: node, Latency: time.Since(start).String()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownNode):
		return http.StatusNotFound
	case pool.IsTimeoutError(err), errors.Is(err, pool.ErrPoolClosed), pool.IsOpenError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	writeJSON(w, statusCode, ErrorResponse{Error: err.Error()})
}
