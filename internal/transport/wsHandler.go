package transport

import (
	"crypto/hmac"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/broadcast"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/transport/middleware"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsReadLimit  = 4096

	// Browser socket clients cannot set arbitrary headers, so the kiosk
	// smuggles its credential through the negotiated sub-protocol as
	// "kiosk-token.<lane>.<token>". The token is the lane-derived kiosk
	// credential, so the connection is scoped to that one lane.
	kioskProtocolPrefix = "kiosk-token."
)

type WSHandler struct {
	hub         *broadcast.Hub
	sessions    service.StaffSessionReader
	kioskSecret string
	upgrader    websocket.Upgrader
}

func NewWSHandler(hub *broadcast.Hub, sessions service.StaffSessionReader, kioskSecret string) *WSHandler {
	return &WSHandler{
		hub:         hub,
		sessions:    sessions,
		kioskSecret: kioskSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Terminals live on the facility LAN behind the same proxy.
				return true
			},
		},
	}
}

// subscribeMessage is the control message terminals send after connecting
// (and again whenever what they display changes).
type subscribeMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
	Lane   string   `json:"lane,omitempty"`
}

// kioskProtocol validates a "kiosk-token.<lane>.<token>" sub-protocol and
// returns the matching protocol header and the lane it is scoped to.
func (h *WSHandler) kioskProtocol(r *http.Request) (string, string, bool) {
	if h.kioskSecret == "" {
		return "", "", false
	}
	for _, proto := range websocket.Subprotocols(r) {
		if !strings.HasPrefix(proto, kioskProtocolPrefix) {
			continue
		}
		lane, token, ok := strings.Cut(strings.TrimPrefix(proto, kioskProtocolPrefix), ".")
		if !ok || lane == "" {
			continue
		}
		expected := middleware.KioskToken(h.kioskSecret, lane)
		if hmac.Equal([]byte(token), []byte(expected)) {
			return proto, lane, true
		}
	}
	return "", "", false
}

// authenticate admits staff by bearer token query parameter or a kiosk by
// sub-protocol. The returned lane is empty for staff and pins kiosk
// connections to their own lane's topics.
func (h *WSHandler) authenticate(c *gin.Context) (http.Header, string, bool) {
	if token := c.Query("token"); token != "" {
		if _, err := h.sessions.StaffSession(c.Request.Context(), token); err == nil {
			return nil, "", true
		}
		return nil, "", false
	}

	if proto, lane, ok := h.kioskProtocol(c.Request); ok {
		header := http.Header{}
		header.Set("Sec-WebSocket-Protocol", proto)
		return header, lane, true
	}

	return nil, "", false
}

func (h *WSHandler) Handle(c *gin.Context) {
	responseHeader, kioskLane, ok := h.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, responseHeader)
	if err != nil {
		logrus.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	sub := h.hub.Subscribe()
	go h.writePump(conn, sub)
	h.readPump(conn, sub, kioskLane)
}

func (h *WSHandler) readPump(conn *websocket.Conn, sub *broadcast.Subscriber, kioskLane string) {
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Debugf("WebSocket read error: %v", err)
			}
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "subscribe" {
			continue
		}

		h.hub.Resubscribe(sub, topicsFor(msg, kioskLane)...)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *broadcast.Subscriber) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// topicsFor maps a subscribe control message to hub topics: lane-scoped
// event kinds collapse onto the lane topic, everything else is global. A
// kiosk connection only ever gets its own lane's topic, whatever it asks
// for.
func topicsFor(msg subscribeMessage, kioskLane string) []string {
	seen := make(map[string]struct{})
	var topics []string

	add := func(topic string) {
		if _, dup := seen[topic]; dup {
			return
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}

	if kioskLane != "" {
		for _, name := range msg.Events {
			switch entity.EventType(name) {
			case entity.EventSessionUpdated, entity.EventCheckinOptionHighlight:
				add(entity.TopicLane(kioskLane))
			}
		}
		return topics
	}

	for _, name := range msg.Events {
		switch entity.EventType(name) {
		case entity.EventSessionUpdated, entity.EventCheckinOptionHighlight:
			if msg.Lane != "" {
				add(entity.TopicLane(msg.Lane))
			}
		case entity.EventWaitlistUpdated, entity.EventInventoryUpdated, entity.EventRegisterSessionUpdated:
			add(entity.GlobalTopic(entity.EventType(name)))
		}
	}

	return topics
}
