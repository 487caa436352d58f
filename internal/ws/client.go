package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/config"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Send buffer size per client.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
	Subprotocols: []string{
		ProtocolJSON,
		ProtocolZstd,
	},
}

// Client represents a WebSocket client connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	connID   string
	symbols  map[string]bool
	logger   *zap.Logger
	protocol string // ProtocolJSON or ProtocolZstd
	encoder  *Encoder
}

// HandleWS upgrades the connection and starts the read/write pumps.
func (h *Hub) HandleWS(encoder *Encoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Negotiate subprotocol; plain JSON when the client offers none
		protocol := ProtocolJSON
		var responseHeader http.Header
		for _, proto := range websocket.Subprotocols(r) {
			switch proto {
			case ProtocolJSON, ProtocolZstd:
				protocol = proto
				responseHeader = http.Header{"Sec-WebSocket-Protocol": {proto}}
			}
			if responseHeader != nil {
				break
			}
		}

		conn, err := upgrader.Upgrade(w, r, responseHeader)
		if err != nil {
			h.logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		connID := uuid.New().String()
		client := &Client{
			hub:      h,
			conn:     conn,
			send:     make(chan []byte, sendBufferSize),
			connID:   connID,
			symbols:  make(map[string]bool),
			logger:   h.logger,
			protocol: protocol,
			encoder:  encoder,
		}

		h.register <- client

		connected, err := client.encodeFrame(buildConnectedMessage(connID, protocol))
		if err == nil {
			client.send <- connected
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error",
					zap.String("connID", c.connID),
					zap.Error(err),
				)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	msgType := websocket.TextMessage
	if c.protocol == ProtocolZstd {
		msgType = websocket.BinaryMessage
	}

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed, send close message
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msgType, message); err != nil {
				c.logger.Debug("websocket write error",
					zap.String("connID", c.connID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming upstream message.
func (c *Client) handleMessage(data []byte) {
	msg, err := parseUpstreamMessage(data)
	if err != nil {
		c.logger.Debug("failed to parse upstream message",
			zap.String("connID", c.connID),
			zap.Error(err),
		)
		return
	}

	switch m := msg.(type) {
	case *subscribeRequest:
		symbol := config.NormalizeSymbol(m.symbol)
		if err := config.ValidateSymbol(symbol); err == nil {
			c.hub.Subscribe(c, symbol)
			c.sendFrame(buildAckMessage("subscribe", symbol, true))
		} else {
			c.logger.Debug("invalid symbol in subscribe",
				zap.String("connID", c.connID),
				zap.String("symbol", m.symbol),
			)
			c.sendFrame(buildAckMessage("subscribe", m.symbol, false))
		}

	case *unsubscribeRequest:
		symbol := config.NormalizeSymbol(m.symbol)
		c.hub.Unsubscribe(c, symbol)
		c.sendFrame(buildAckMessage("unsubscribe", symbol, true))

	case *pingRequest:
		c.sendFrame(buildPongMessage())
	}
}

// sendFrame encodes and queues one downstream frame, dropping it when the
// buffer is full.
func (c *Client) sendFrame(frame []byte) {
	encoded, err := c.encodeFrame(frame)
	if err != nil {
		return
	}
	select {
	case c.send <- encoded:
	default:
	}
}

// encodeFrame applies the negotiated protocol's encoding to one JSON frame.
func (c *Client) encodeFrame(frame []byte) ([]byte, error) {
	if c.protocol == ProtocolZstd {
		return c.encoder.Encode(frame), nil
	}
	return frame, nil
}

// buildDataMsg wraps a symbol payload in the data envelope for this client.
func (c *Client) buildDataMsg(symbol string, payload []byte) ([]byte, error) {
	return c.encodeFrame(buildDataMessage(symbol, payload))
}
