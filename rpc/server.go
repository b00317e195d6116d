package rpc

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yieldedu/core/events"
	"yieldedu/native/borrow"
	"yieldedu/native/registry"
	"yieldedu/native/yieldpool"
	"yieldedu/observability"
	"yieldedu/state"
)

// Server exposes the ledger engines over HTTP. Mutating handlers run inside
// the ledger write lock so every engine call commits as a unit; reads take the
// shared lock.
type Server struct {
	ledger   *state.LedgerState
	registry *registry.Engine
	pool     *yieldpool.Engine
	borrow   *borrow.Engine
	recorder *events.Recorder
	log      *slog.Logger
}

// NewServer wires the engines into an HTTP server.
func NewServer(ledger *state.LedgerState, reg *registry.Engine, pool *yieldpool.Engine, brw *borrow.Engine, recorder *events.Recorder, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ledger:   ledger,
		registry: reg,
		pool:     pool,
		borrow:   brw,
		recorder: recorder,
		log:      log,
	}
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/v1/events", s.handleEvents)

	r.Route("/v1/registry", func(r chi.Router) {
		r.Post("/mint", s.handleMint)
		r.Post("/mint-to-pool", s.handleMintToPool)
		r.Post("/burn", s.handleBurn)
		r.Post("/minters", s.handleSetMinter)
		r.Post("/minters/remove", s.handleRemoveMinter)
		r.Get("/minters", s.handleMinters)
		r.Post("/students", s.handleSetStudentStatus)
		r.Get("/students/{address}", s.handleIsStudent)
		r.Get("/balances/{address}", s.handleBalanceOf)
		r.Get("/supply", s.handleTotalSupply)
		r.Get("/token", s.handleTokenInfo)
	})

	r.Route("/v1/pool", func(r chi.Router) {
		r.Post("/deposit", s.handleDeposit)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/unstake", s.handleUnstake)
		r.Post("/params", s.handleUpdateYieldParameters)
		r.Post("/allowlist", s.handleModifyAllowList)
		r.Post("/allowlist/add", s.handleAddAllowedToken)
		r.Post("/allowlist/remove", s.handleRemoveAllowedToken)
		r.Get("/params", s.handlePoolParams)
		r.Get("/positions/{id}", s.handleGetPosition)
		r.Get("/users/{address}/balances", s.handleUserTokenBalances)
		r.Get("/stats", s.handlePoolStats)
		r.Get("/allowlist", s.handleAllowedTokens)
		r.Get("/allowlist/{token}", s.handleIsTokenAllowed)
		r.Get("/yield", s.handleExpectedYield)
	})

	r.Route("/v1/borrow", func(r chi.Router) {
		r.Post("/loans", s.handleBorrow)
		r.Post("/repay", s.handlePayLoan)
		r.Post("/fund", s.handleFundPool)
		r.Post("/params", s.handleSetBorrowParams)
		r.Get("/params", s.handleBorrowParams)
		r.Get("/loans", s.handleAllLoans)
		r.Get("/loans/user/{address}", s.handleUserLoans)
		r.Get("/loans/{id}/due", s.handleTotalDue)
		r.Get("/pool/{token}", s.handlePoolBalance)
		r.Get("/health-factor", s.handleHealthFactor)
	})

	return r
}

// observe logs every request and feeds the module metrics with the route
// pattern rather than the raw path so label cardinality stays bounded.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		duration := time.Since(start)
		observability.ModuleMetrics().Observe(moduleLabel(pattern), r.Method+" "+pattern, ww.Status(), duration)
		s.log.Info("rpc request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", duration.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func moduleLabel(pattern string) string {
	switch {
	case strings.HasPrefix(pattern, "/v1/registry"):
		return "registry"
	case strings.HasPrefix(pattern, "/v1/pool"):
		return "yieldpool"
	case strings.HasPrefix(pattern, "/v1/borrow"):
		return "borrow"
	default:
		return "system"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type eventPayload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	payload := []eventPayload{}
	if s.recorder != nil {
		for _, evt := range s.recorder.Events() {
			payload = append(payload, eventPayload{Type: evt.Type, Attributes: evt.Attributes})
		}
	}
	writeJSON(w, http.StatusOK, payload)
}
