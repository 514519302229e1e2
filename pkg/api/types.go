package api

import (
	"github.com/uhyunpark/hyperbook/pkg/app/core/engine"
	"github.com/uhyunpark/hyperbook/pkg/app/core/market"
	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperbook/pkg/app/core/view"
)

// API response types for REST endpoints and WebSocket messages.
// Prices are integer ticks, sizes integer lots, timestamps unix milliseconds.

// ==============================
// REST Response Types
// ==============================

// MarketInfo represents a market's configuration and trading status
type MarketInfo struct {
	Symbol          string `json:"symbol"`     // e.g., "BTC-USDT"
	BaseAsset       string `json:"baseAsset"`  // e.g., "BTC"
	QuoteAsset      string `json:"quoteAsset"` // e.g., "USDT"
	Status          string `json:"status"`     // "active", "paused", "closed"
	TickSize        int64  `json:"tickSize"`
	LotSize         int64  `json:"lotSize"`
	MinOrderSize    int64  `json:"minOrderSize"`
	MaxOrderSize    int64  `json:"maxOrderSize"`
	TakerFeeBps     int64  `json:"takerFeeBps"`
	MakerFeeBps     int64  `json:"makerFeeBps"` // negative is a rebate
	SlippageBps     int64  `json:"slippageBps"`
	SelfTradePolicy string `json:"selfTradePolicy"`
	PriceDecimals   int32  `json:"priceDecimals"`
	SizeDecimals    int32  `json:"sizeDecimals"`
	OpenOrders      int    `json:"openOrders"`
	LastPrice       int64  `json:"lastPrice"`
	CreatedAt       int64  `json:"createdAt"`
}

func marketInfo(m *market.Market) MarketInfo {
	p := m.Params
	return MarketInfo{
		Symbol:          m.Symbol,
		BaseAsset:       m.BaseAsset,
		QuoteAsset:      m.QuoteAsset,
		Status:          m.Status().String(),
		TickSize:        p.TickSize,
		LotSize:         p.LotSize,
		MinOrderSize:    p.MinOrderSize,
		MaxOrderSize:    p.MaxOrderSize,
		TakerFeeBps:     p.TakerFeeBps,
		MakerFeeBps:     p.MakerFeeBps,
		SlippageBps:     p.SlippageBps,
		SelfTradePolicy: p.SelfTrade.String(),
		PriceDecimals:   p.PriceDecimals,
		SizeDecimals:    p.SizeDecimals,
		OpenOrders:      m.Engine.OpenOrderCount(),
		LastPrice:       m.Engine.LastPrice(),
		CreatedAt:       m.CreatedAt.UnixMilli(),
	}
}

// OrderbookSnapshot represents current orderbook state
type OrderbookSnapshot struct {
	Symbol    string           `json:"symbol"`
	Bids      []view.LevelView `json:"bids"` // Sorted high to low
	Asks      []view.LevelView `json:"asks"` // Sorted low to high
	Timestamp int64            `json:"timestamp"`
}

// TradeInfo represents one fill as seen by API clients
type TradeInfo struct {
	ID           uint64 `json:"id"`
	Symbol       string `json:"symbol"`
	Price        int64  `json:"price"`
	Size         int64  `json:"size"`
	Side         string `json:"side"` // taker side: "buy" or "sell"
	TakerOrderID uint64 `json:"takerOrderId"`
	MakerOrderID uint64 `json:"makerOrderId"`
	Timestamp    int64  `json:"timestamp"`
}

func tradeInfos(fills []orderbook.Fill) []TradeInfo {
	out := make([]TradeInfo, len(fills))
	for i, f := range fills {
		out[i] = TradeInfo{
			ID:           f.ID,
			Symbol:       f.Symbol,
			Price:        f.Price,
			Size:         f.Qty,
			Side:         f.TakerSide.String(),
			TakerOrderID: f.TakerOrderID,
			MakerOrderID: f.MakerOrderID,
			Timestamp:    f.Timestamp / 1e6,
		}
	}
	return out
}

// OrderInfo represents a resting order
type OrderInfo struct {
	ID        uint64 `json:"id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
	Filled    int64  `json:"filled"`
	Remaining int64  `json:"remaining"`
	Owner     string `json:"owner"`
	ClientID  string `json:"clientId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func orderInfo(o orderbook.Order) OrderInfo {
	return OrderInfo{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side.String(),
		Type:      o.Type.String(),
		Price:     o.Price,
		Size:      o.OriginalQty,
		Filled:    o.FilledQty(),
		Remaining: o.RemainingQty,
		Owner:     o.OwnerID,
		ClientID:  o.ClientID,
		Timestamp: o.Timestamp / 1e6,
	}
}

// StatsResponse is top of book plus trade statistics for one window
type StatsResponse struct {
	Symbol string `json:"symbol"`
	view.Summary
}

// HealthResponse is served on /health
type HealthResponse struct {
	Status  string `json:"status"`
	Markets int    `json:"markets"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope for control messages
type WSMessage struct {
	Type string      `json:"type"` // "subscribed", "unsubscribed", "error"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orderbook:BTC-USDT", "trades:BTC-USDT"]
}

// OrderbookUpdate is broadcast after every change to a book
type OrderbookUpdate struct {
	Type      string           `json:"type"` // "orderbook"
	Symbol    string           `json:"symbol"`
	Bids      []view.LevelView `json:"bids"`
	Asks      []view.LevelView `json:"asks"`
	Timestamp int64            `json:"timestamp"`
}

// TradeUpdate carries the fills of one submit
type TradeUpdate struct {
	Type      string      `json:"type"` // "trades"
	Symbol    string      `json:"symbol"`
	Trades    []TradeInfo `json:"trades"`
	Timestamp int64       `json:"timestamp"`
}

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest is the payload for POST /api/v1/orders.
// Side is "buy"/"sell", type is "limit", "ioc" or "market".
type SubmitOrderRequest = engine.NewOrderRequest

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest = engine.CancelRequest

// UpdateStatusRequest is the payload for POST /api/v1/markets/{symbol}/status
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	RequestID string `json:"requestId"`
	engine.SubmitResult
}

type CancelOrderResponse struct {
	RequestID string    `json:"requestId"`
	Order     OrderInfo `json:"order"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error     string `json:"error"` // machine-readable kind
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}
