package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/alim08/cryptotrader/pkg/engine"
	"github.com/alim08/cryptotrader/pkg/ledger"
	"github.com/alim08/cryptotrader/pkg/logger"
	"github.com/alim08/cryptotrader/pkg/metrics"
	"github.com/alim08/cryptotrader/pkg/models"
	"github.com/alim08/cryptotrader/pkg/validation"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Pinger is the optional Redis health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the controller over REST, GraphQL and a websocket.
type Server struct {
	ctrl   *engine.Controller
	redis  Pinger
	schema graphql.Schema
	hub    *Hub
}

// NewServer builds the schema and hub for ctrl. redis may be nil.
func NewServer(ctrl *engine.Controller, redis Pinger) (*Server, error) {
	schema, err := createSchema(ctrl)
	if err != nil {
		return nil, fmt.Errorf("graphql schema: %w", err)
	}
	return &Server{
		ctrl:   ctrl,
		redis:  redis,
		schema: schema,
		hub:    NewHub(ctrl),
	}, nil
}

// Router wires every route with the logging, CORS and metrics middleware.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)
	router.Use(metricsMiddleware)

	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.HandleFunc("/graphql", s.graphqlHandler).Methods("GET", "POST")
	router.HandleFunc("/ws", s.hub.ServeHTTP).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/state", s.getStateHandler).Methods("GET")
	api.HandleFunc("/tickers", s.getTickersHandler).Methods("GET")
	api.HandleFunc("/search", s.searchHandler).Methods("PUT")
	api.HandleFunc("/symbol", s.selectSymbolHandler).Methods("POST")
	api.HandleFunc("/orderbook", s.getOrderBookHandler).Methods("GET")
	api.HandleFunc("/panel", s.openPanelHandler).Methods("POST")
	api.HandleFunc("/panel", s.closePanelHandler).Methods("DELETE")
	api.HandleFunc("/panel/inputs", s.panelInputsHandler).Methods("PUT")
	api.HandleFunc("/trades", s.confirmTradeHandler).Methods("POST")
	api.HandleFunc("/wallet", s.getWalletHandler).Methods("GET")
	api.HandleFunc("/transactions", s.getTransactionsHandler).Methods("GET")
	api.HandleFunc("/transactions/toggle", s.toggleTransactionsHandler).Methods("POST")
	api.HandleFunc("/notice", s.dismissNoticeHandler).Methods("DELETE")
	return router
}

// writeJSON writes a JSON response with proper headers
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Error("JSON encoding error", zap.Error(err))
	}
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	data := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"loading":   st.Loading,
		"feed_ok":   st.Error == "",
	}
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Redis connection failed")
			return
		}
	}
	writeOK(w, data)
}

func (s *Server) getStateHandler(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.ctrl.State())
}

func (s *Server) getTickersHandler(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	writeOK(w, map[string]interface{}{
		"query":   st.Query,
		"results": st.Results,
		"loading": st.Loading,
		"error":   st.Error,
	})
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.ctrl.SetQuery(req.Query)
	writeOK(w, map[string]string{"query": req.Query})
}

type symbolRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

func (s *Server) selectSymbolHandler(w http.ResponseWriter, r *http.Request) {
	var req symbolRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if verrs := validation.ValidateStruct(req); verrs != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "Validation failed", Details: verrs})
		return
	}

	res, err := s.ctrl.SelectSymbol(req.Symbol)
	data := map[string]interface{}{
		"accepted":      res.Accepted,
		"active_symbol": res.Symbol,
	}
	if res.Fallback != nil {
		data["fallback"] = res.Fallback.Error()
	}
	if err != nil {
		data["chart_error"] = err.Error()
	}
	writeOK(w, data)
}

func (s *Server) getOrderBookHandler(w http.ResponseWriter, r *http.Request) {
	book, err := s.ctrl.OrderBook()
	if errors.Is(err, engine.ErrNoTicker) {
		writeError(w, http.StatusNotFound, "No ticker for "+book.Market)
		return
	}
	writeOK(w, book)
}

type panelRequest struct {
	Type string `json:"type" validate:"required,oneof=buy sell"`
}

func (s *Server) openPanelHandler(w http.ResponseWriter, r *http.Request) {
	var req panelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if verrs := validation.ValidateStruct(req); verrs != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "Validation failed", Details: verrs})
		return
	}
	s.ctrl.OpenTradingPanel(models.TradeType(req.Type))
	writeOK(w, s.ctrl.State().Panel)
}

func (s *Server) closePanelHandler(w http.ResponseWriter, r *http.Request) {
	s.ctrl.CloseTradingPanel()
	writeOK(w, s.ctrl.State().Panel)
}

type inputsRequest struct {
	Amount *string `json:"amount"`
	Price  *string `json:"price"`
}

func (s *Server) panelInputsHandler(w http.ResponseWriter, r *http.Request) {
	var req inputsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount != nil {
		s.ctrl.SetAmount(*req.Amount)
	}
	if req.Price != nil {
		s.ctrl.SetPrice(*req.Price)
	}
	writeOK(w, s.ctrl.State().Panel)
}

type tradeRequest struct {
	Type   string  `json:"type" validate:"omitempty,oneof=buy sell"`
	Amount *string `json:"amount"`
	Price  *string `json:"price"`
}

// confirmTradeHandler confirms the panel. Fields in the body, if any, are
// applied to the panel first.
func (s *Server) confirmTradeHandler(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if verrs := validation.ValidateStruct(req); verrs != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "Validation failed", Details: verrs})
		return
	}
	if req.Type != "" {
		s.ctrl.OpenTradingPanel(models.TradeType(req.Type))
	}
	if req.Amount != nil {
		s.ctrl.SetAmount(*req.Amount)
	}
	if req.Price != nil {
		s.ctrl.SetPrice(*req.Price)
	}

	tx, err := s.ctrl.ConfirmTrade()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, ledger.Message(err))
		return
	}
	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data: map[string]interface{}{
			"transaction": tx,
			"wallet":      s.ctrl.Wallet(),
			"message":     ledger.Confirmation(tx),
		},
	})
}

func (s *Server) getWalletHandler(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.ctrl.Wallet())
}

func (s *Server) getTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs := s.ctrl.Transactions()
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(txs) {
			txs = txs[:n]
		}
	}
	writeOK(w, map[string]interface{}{
		"visible":      s.ctrl.State().ShowTransactions,
		"transactions": txs,
	})
}

func (s *Server) toggleTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]bool{"visible": s.ctrl.ToggleTransactions()})
}

func (s *Server) dismissNoticeHandler(w http.ResponseWriter, r *http.Request) {
	s.ctrl.DismissNotice()
	w.WriteHeader(http.StatusNoContent)
}

type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

func (s *Server) graphqlHandler(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	if r.Method == http.MethodGet {
		req.Query = r.URL.Query().Get("query")
		req.OperationName = r.URL.Query().Get("operationName")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	if result.HasErrors() {
		logger.Log.Debug("graphql errors", zap.Any("errors", result.Errors))
	}
	writeJSON(w, http.StatusOK, result)
}

// Middleware functions
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Log.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code. It passes Hijack through so
// the websocket upgrade still works behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start).Seconds()

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		status := strconv.Itoa(rec.status)
		metrics.APIRequestDuration.WithLabelValues(r.Method, endpoint, status).Observe(duration)
		metrics.APIRequestTotal.WithLabelValues(r.Method, endpoint, status).Inc()
	})
}
