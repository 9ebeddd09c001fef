package infra

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Websocket upgrades echo requests into connections probed by ping/pong
type Websocket struct {
	upgrader     websocket.Upgrader
	writeWait    time.Duration
	pongWait     time.Duration
	pingInterval time.Duration
}

// NewWebsocket create a Websocket with default timeouts. Browsers may only
// connect from the host of pageURL, requests without an Origin header are
// accepted.
func NewWebsocket(pageURL string) *Websocket {
	pongWait := 30 * time.Second
	return &Websocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      sameHostAs(pageURL),
			HandshakeTimeout: 3 * time.Second,
		},
		writeWait:    10 * time.Second,
		pongWait:     pongWait,
		pingInterval: pongWait * 9 / 10,
	}
}

func sameHostAs(pageURL string) func(*http.Request) bool {
	page, err := url.Parse(pageURL)
	if err != nil || page.Host == "" {
		return func(*http.Request) bool { return false }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, page.Host)
	}
}

// WithHeartbeat wrap handler function with heartbeat probe.
//
// handler owns the connection reads until it returns, the connection is closed afterwards
func (ws *Websocket) WithHeartbeat(handler func(echo.Context, *websocket.Conn) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := ws.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// the upgrader already wrote the handshake error
			return nil
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(ws.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(ws.pongWait))
		})

		done := make(chan struct{})
		defer close(done)
		go ws.heartbeatRoutine(conn, done)

		handler(c, conn)
		return nil
	}
}

func (ws *Websocket) heartbeatRoutine(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(ws.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ws.writeWait)); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// WriteWait deadline applied to each outgoing frame
func (ws *Websocket) WriteWait() time.Duration {
	return ws.writeWait
}
