// Package ws streams indicator updates to WebSocket subscribers. Clients
// subscribe to symbols; the streamer re-runs the flow composite for every
// symbol with at least one subscriber and broadcasts the result.
package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/metrics"
)

// Hub manages WebSocket connections and per-symbol subscriptions.
type Hub struct {
	clients    map[*Client]bool
	symbols    map[string]map[*Client]bool // symbol -> subscribers
	register   chan *Client
	unregister chan *Client
	broadcast  chan *symbolMessage
	mu         sync.RWMutex
	logger     *zap.Logger
}

type symbolMessage struct {
	symbol  string
	payload []byte
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		symbols:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *symbolMessage, 256),
		logger:     logger,
	}
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			h.logger.Debug("client registered", zap.String("connID", client.connID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for symbol := range client.symbols {
					if subs, ok := h.symbols[symbol]; ok {
						delete(subs, client)
						if len(subs) == 0 {
							delete(h.symbols, symbol)
						}
					}
				}
				close(client.send)
				metrics.WebSocketConnections.Dec()
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.String("connID", client.connID))

		case msg := <-h.broadcast:
			h.dispatch(msg.symbol, msg.payload)
		}
	}
}

// shutdown closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketConnections.Dec()
	}
	h.symbols = make(map[string]map[*Client]bool)
}

// Subscribe adds a client to a symbol's subscriber set.
func (h *Hub) Subscribe(client *Client, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.symbols[symbol] == nil {
		h.symbols[symbol] = make(map[*Client]bool)
	}
	h.symbols[symbol][client] = true
	client.symbols[symbol] = true

	h.logger.Debug("client subscribed",
		zap.String("connID", client.connID),
		zap.String("symbol", symbol),
	)
}

// Unsubscribe removes a client from a symbol's subscriber set.
func (h *Hub) Unsubscribe(client *Client, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.symbols[symbol]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.symbols, symbol)
		}
	}
	delete(client.symbols, symbol)

	h.logger.Debug("client unsubscribed",
		zap.String("connID", client.connID),
		zap.String("symbol", symbol),
	)
}

// ActiveSymbols returns every symbol with at least one subscriber.
func (h *Hub) ActiveSymbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var symbols []string
	for symbol, subs := range h.symbols {
		if len(subs) > 0 {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// BroadcastData queues a symbol update for delivery to its subscribers.
func (h *Hub) BroadcastData(symbol string, payload []byte) {
	h.broadcast <- &symbolMessage{symbol: symbol, payload: payload}
}

// dispatch encodes the payload per each subscriber's negotiated protocol.
func (h *Hub) dispatch(symbol string, payload []byte) {
	h.mu.RLock()
	subs, ok := h.symbols[symbol]
	if !ok {
		h.mu.RUnlock()
		return
	}
	// Copy subscribers to avoid holding the lock during send
	clientList := make([]*Client, 0, len(subs))
	for client := range subs {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		msg, err := client.buildDataMsg(symbol, payload)
		if err != nil {
			h.logger.Debug("failed to encode data message",
				zap.String("connID", client.connID),
				zap.Error(err),
			)
			continue
		}
		select {
		case client.send <- msg:
		default:
			// Buffer full, schedule disconnect
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}
