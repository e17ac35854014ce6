// Package httpapi exposes the launch, trading, and market data flows over
// HTTP. Handlers are thin: decode, call the service, encode.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/curvelabs/launchpad/internal/chain"
	"github.com/curvelabs/launchpad/internal/launch"
	"github.com/curvelabs/launchpad/internal/market"
	"github.com/curvelabs/launchpad/internal/metrics"
	"github.com/curvelabs/launchpad/internal/store"
	"github.com/curvelabs/launchpad/internal/workflow"
	"github.com/curvelabs/launchpad/pkg/logger"
)

// Server routes HTTP requests to the launch and market services.
type Server struct {
	router *mux.Router
	launch *launch.Service
	market *market.Service
	log    *logger.Logger

	explorerBaseURL string
}

// Config configures the HTTP server.
type Config struct {
	Launch          *launch.Service
	Market          *market.Service
	Logger          *logger.Logger
	ExplorerBaseURL string
}

// NewServer builds the router.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("httpapi")
	}
	s := &Server{
		router:          mux.NewRouter(),
		launch:          cfg.Launch,
		market:          cfg.Market,
		log:             cfg.Logger,
		explorerBaseURL: cfg.ExplorerBaseURL,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/launches", s.handleStartLaunch).Methods(http.MethodPost)
	api.HandleFunc("/launches", s.handleListLaunches).Methods(http.MethodGet)
	api.HandleFunc("/launches/{id}", s.handleGetLaunch).Methods(http.MethodGet)
	api.HandleFunc("/launches/{id}/resume", s.handleResumeLaunch).Methods(http.MethodPost)
	api.HandleFunc("/trades/buy", s.handleBuy).Methods(http.MethodPost)
	api.HandleFunc("/trades/sell", s.handleSell).Methods(http.MethodPost)
	api.HandleFunc("/fees/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	api.HandleFunc("/market/{entity}/candles", s.handleCandles).Methods(http.MethodGet)
	api.HandleFunc("/market/{entity}/timeframes", s.handleTimeframes).Methods(http.MethodGet)

	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithField("path", r.URL.Path).Debugf("%s handled in %s", r.Method, time.Since(start))
	})
}

// === launch handlers ===

type launchRequest struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	ImageKey    string `json:"image_key"`
	SeedAmount  string `json:"seed_amount"`
}

func (s *Server) handleStartLaunch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	seed, err := parseAmount(req.SeedAmount, true)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := s.launch.StartLaunch(r.Context(), launch.LaunchRequest{
		Owner:       req.Owner,
		Name:        req.Name,
		Symbol:      req.Symbol,
		Description: req.Description,
		ImageKey:    req.ImageKey,
		SeedAmount:  seed,
	})
	if err != nil {
		s.writeError(w, errStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.snapshotResponse(snap))
}

func (s *Server) handleResumeLaunch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := s.launch.ResumeLaunch(r.Context(), id)
	if err != nil {
		s.writeError(w, errStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.snapshotResponse(snap))
}

func (s *Server) handleGetLaunch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := s.launch.Launch(r.Context(), id)
	if err != nil {
		s.writeError(w, errStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.snapshotResponse(snap))
}

func (s *Server) handleListLaunches(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.launch.ListLaunches(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]snapshotResponse, len(snaps))
	for i, snap := range snaps {
		out[i] = s.snapshotResponse(snap)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"launches": out})
}

// === trade handlers ===

type tradeRequest struct {
	Owner  string `json:"owner"`
	Curve  string `json:"curve"`
	Token  string `json:"token,omitempty"`
	Amount string `json:"amount"`
	Cost   string `json:"cost,omitempty"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.launch.Buy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.launch.Sell)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, req launch.TradeRequest) (workflow.Snapshot, error)) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	amount, err := parseAmount(req.Amount, false)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cost, err := parseAmount(req.Cost, true)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, runErr := run(r.Context(), launch.TradeRequest{
		Owner:  req.Owner,
		Curve:  req.Curve,
		Token:  req.Token,
		Amount: amount,
		Cost:   cost,
	})
	s.writeOutcome(w, snap, runErr)
}

type withdrawRequest struct {
	Owner    string `json:"owner"`
	Provider string `json:"provider"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	snap, runErr := s.launch.WithdrawFees(r.Context(), req.Owner, req.Provider)
	s.writeOutcome(w, snap, runErr)
}

// writeOutcome reports a synchronous flow result. A halted workflow is not an
// HTTP failure at transport level below 500: the snapshot carries the step
// error and the flow may be retried.
func (s *Server) writeOutcome(w http.ResponseWriter, snap workflow.Snapshot, runErr error) {
	if runErr != nil && snap.ID == "" {
		s.writeError(w, errStatus(runErr), runErr)
		return
	}
	resp := s.snapshotResponse(snap)
	if runErr != nil {
		resp.Error = runErr.Error()
		s.writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// === market handlers ===

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("market data not configured"))
		return
	}
	entity := mux.Vars(r)["entity"]
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = market.DefaultTimeframe
	}

	res := s.market.Candles(r.Context(), entity, timeframe)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"candles": res.Data.Candles,
		"count":   res.Data.Count,
		"stale":   !res.Valid,
	})
}

func (s *Server) handleTimeframes(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("market data not configured"))
		return
	}
	entity := mux.Vars(r)["entity"]
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timeframes": s.market.Timeframes(r.Context(), entity),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === responses ===

type stepResponse struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	TxID        string `json:"tx_id,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

type snapshotResponse struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Owner        string            `json:"owner"`
	Status       string            `json:"status"`
	CurrentIndex int               `json:"current_index"`
	Steps        []stepResponse    `json:"steps"`
	Results      map[string]string `json:"results,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Error        string            `json:"error,omitempty"`
}

func (s *Server) snapshotResponse(snap workflow.Snapshot) snapshotResponse {
	steps := make([]stepResponse, len(snap.Steps))
	for i, st := range snap.Steps {
		steps[i] = stepResponse{
			Name:   st.Name,
			Kind:   st.Kind.String(),
			Status: st.Status.String(),
			TxID:   st.TxID,
			Error:  st.Error,
		}
		if st.TxID != "" && s.explorerBaseURL != "" {
			steps[i].ExplorerURL = chain.ExplorerTxURL(s.explorerBaseURL, st.TxID)
		}
	}
	return snapshotResponse{
		ID:           snap.ID,
		Name:         snap.Name,
		Owner:        snap.Owner,
		Status:       snap.Status.String(),
		CurrentIndex: snap.CurrentIndex,
		Steps:        steps,
		Results:      snap.Results,
		UpdatedAt:    snap.UpdatedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// errStatus maps service errors to HTTP statuses. Caller mistakes are 4xx;
// anything else (store failures, gateway faults) is a 500.
func errStatus(err error) int {
	switch {
	case errors.Is(err, launch.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, launch.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseAmount(raw string, optional bool) (*big.Int, error) {
	if raw == "" {
		if optional {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("amount is required")
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}
