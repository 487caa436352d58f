package ws

import (
	"encoding/json"
	"fmt"
)

// Subprotocol names offered during the WebSocket handshake.
const (
	ProtocolJSON = "indicators.json.v1"
	ProtocolZstd = "indicators.zstd.v1"
)

// Upstream message types for internal routing
type (
	subscribeRequest struct {
		symbol string
	}
	unsubscribeRequest struct {
		symbol string
	}
	pingRequest struct{}
)

// upstreamMessage is the wire shape of every client-to-server message.
type upstreamMessage struct {
	Action string `json:"action"`
	Symbol string `json:"symbol,omitempty"`
}

// parseUpstreamMessage parses a JSON-encoded upstream message.
func parseUpstreamMessage(data []byte) (any, error) {
	var msg upstreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal upstream message: %w", err)
	}

	switch msg.Action {
	case "subscribe":
		return &subscribeRequest{symbol: msg.Symbol}, nil
	case "unsubscribe":
		return &unsubscribeRequest{symbol: msg.Symbol}, nil
	case "ping":
		return &pingRequest{}, nil
	default:
		return nil, fmt.Errorf("unknown action: %q", msg.Action)
	}
}

// buildConnectedMessage creates the message sent on connection open.
func buildConnectedMessage(connID, protocol string) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":          "connected",
		"connection_id": connID,
		"protocol":      protocol,
	})
	return data
}

// buildAckMessage confirms a subscribe or unsubscribe.
func buildAckMessage(action, symbol string, success bool) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":    "ack",
		"action":  action,
		"symbol":  symbol,
		"success": success,
	})
	return data
}

// buildPongMessage answers a client ping.
func buildPongMessage() []byte {
	data, _ := json.Marshal(map[string]any{"type": "pong"})
	return data
}

// buildDataMessage wraps one indicator result for a symbol.
func buildDataMessage(symbol string, payload json.RawMessage) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":   "data",
		"symbol": symbol,
		"data":   payload,
	})
	return data
}
