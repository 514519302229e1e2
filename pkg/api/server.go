package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbook/pkg/app/core/market"
	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperbook/pkg/app/exchange"
	"github.com/uhyunpark/hyperbook/pkg/metrics"
)

const (
	defaultDepth      = 20
	maxDepth          = 500
	defaultTradeLimit = 100
	maxTradeLimit     = 1000
	maxBodyBytes      = 1 << 16

	requestIDHeader = "X-Request-ID"
)

type ctxKey int

const requestIDKey ctxKey = 0

// Server handles REST API and WebSocket connections
type Server struct {
	app     *exchange.App
	router  *mux.Router
	hub     *Hub
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	origins []string
}

// NewServer creates the API server and subscribes its hub to book and trade
// changes of app.
func NewServer(app *exchange.App, m *metrics.Metrics, log *zap.SugaredLogger, origins []string) *Server {
	if m == nil {
		m = metrics.NopMetrics()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	s := &Server{
		app:     app,
		router:  mux.NewRouter(),
		hub:     NewHub(log),
		metrics: m,
		log:     log,
		origins: origins,
	}
	s.setupRoutes()

	app.OnBookChange(s.BroadcastOrderbook)
	app.OnTrade(s.BroadcastTrades)
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{symbol}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/markets/{symbol}/stats", s.handleGetStats).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/markets/{symbol}/status", s.handleUpdateStatus).Methods("POST")

	// Order entry
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Hub exposes the WebSocket hub so callers can run it on their own context.
func (s *Server) Hub() *Hub { return s.hub }

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Infow("api_listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "api server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if lerr := <-errc; !errors.Is(lerr, http.ErrServerClosed) {
		err = errors.CombineErrors(err, lerr)
	}
	s.log.Infow("api_stopped")
	return err
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.app.Registry().List()

	response := make([]MarketInfo, len(markets))
	for i, m := range markets {
		response[i] = marketInfo(m)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.app.Market(mux.Vars(r)["symbol"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, marketInfo(m))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	depth, err := intParam(r, "depth", defaultDepth, maxDepth)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	d, err := s.app.Depth(symbol, depth)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, OrderbookSnapshot{
		Symbol:    symbol,
		Bids:      d.Bids,
		Asks:      d.Asks,
		Timestamp: time.Now().UnixMilli(),
	})
}

// handleGetTrades serves fills newest first; since is unix milliseconds.
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultTradeLimit, maxTradeLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			respondError(w, r, http.StatusBadRequest, "invalid_request", "since must be unix milliseconds")
			return
		}
		since = ms * int64(time.Millisecond)
	}

	fills, err := s.app.Trades(mux.Vars(r)["symbol"], since, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, tradeInfos(fills))
}

// handleGetStats takes the window as a Go duration ("1h", "15m").
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	var window time.Duration
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			respondError(w, r, http.StatusBadRequest, "invalid_request", "window must be a positive duration")
			return
		}
		window = d
	}
	sum, err := s.app.Stats(symbol, window)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, StatsResponse{Symbol: symbol, Summary: sum})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "owner is required")
		return
	}
	m, err := s.app.Market(mux.Vars(r)["symbol"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders := m.Engine.OpenOrders(owner)
	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = orderInfo(o)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "bad order id")
		return
	}
	m, err := s.app.Market(vars["symbol"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, ok := m.Engine.Order(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, "order_not_found", "order is not resting")
		return
	}
	respondJSON(w, orderInfo(o))
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := market.ParseStatus(req.Status)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	symbol := mux.Vars(r)["symbol"]
	if err := s.app.Registry().UpdateStatus(symbol, st); err != nil {
		if exchange.Kind(err) == "internal" {
			respondError(w, r, http.StatusConflict, "invalid_transition", err.Error())
			return
		}
		s.fail(w, r, err)
		return
	}
	s.log.Infow("market_status_changed", "request_id", RequestID(r.Context()), "symbol", symbol, "status", st)

	m, err := s.app.Market(symbol)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, marketInfo(m))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rid := RequestID(r.Context())
	res, err := s.app.Submit(r.Context(), rid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, SubmitOrderResponse{RequestID: rid, SubmitResult: res})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "missing orderId")
		return
	}
	rid := RequestID(r.Context())
	res, err := s.app.Cancel(r.Context(), rid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, CancelOrderResponse{RequestID: rid, Order: orderInfo(res.Order)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", Markets: s.app.Registry().Count()})
}

// ==============================
// Broadcast Methods (registered as app hooks)
// ==============================

// BroadcastOrderbook pushes the top of the book to orderbook:{symbol}.
func (s *Server) BroadcastOrderbook(symbol string) {
	channel := "orderbook:" + symbol
	if !s.hub.HasSubscribers(channel) {
		return
	}
	d, err := s.app.Depth(symbol, defaultDepth)
	if err != nil {
		return
	}
	s.hub.BroadcastToChannel(channel, OrderbookUpdate{
		Type:      "orderbook",
		Symbol:    symbol,
		Bids:      d.Bids,
		Asks:      d.Asks,
		Timestamp: time.Now().UnixMilli(),
	})
}

// BroadcastTrades pushes the fills of one submit to trades:{symbol}.
func (s *Server) BroadcastTrades(symbol string, fills []orderbook.Fill) {
	channel := "trades:" + symbol
	if !s.hub.HasSubscribers(channel) {
		return
	}
	s.hub.BroadcastToChannel(channel, TradeUpdate{
		Type:      "trades",
		Symbol:    symbol,
		Trades:    tradeInfos(fills),
		Timestamp: time.Now().UnixMilli(),
	})
}

// ==============================
// Middleware and helpers
// ==============================

// RequestID returns the id assigned to the request by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID tags every request with an id (the caller's X-Request-ID or a
// fresh UUID) and logs it once served.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
		s.log.Debugw("http_request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := exchange.Kind(err)
	status := httpStatus(kind)
	if status == http.StatusInternalServerError {
		s.log.Errorw("request_failed", "request_id", RequestID(r.Context()), "path", r.URL.Path, "err", err)
	}
	respondError(w, r, status, kind, err.Error())
}

func httpStatus(kind string) int {
	switch kind {
	case "invalid_order", "invalid_symbol":
		return http.StatusBadRequest
	case "order_not_found", "market_not_found":
		return http.StatusNotFound
	case "market_halted":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func intParam(r *http.Request, name string, def, limit int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.Newf("%s must be a positive integer", name)
	}
	return min(n, limit), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     kind,
		Message:   message,
		RequestID: RequestID(r.Context()),
	})
}
