package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB; clients only send control frames
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000

	msgTypeDashboard = "dashboard"
)

// wsEnvelope is the frame pushed to dashboard clients.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// The dashboard page may be served from another origin (file:// or a CDN).
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dashboardStream pushes snapshots to one client until it goes away.
type dashboardStream struct {
	h        *Handler
	conn     *websocket.Conn
	interval time.Duration
	closed   chan struct{}
}

// @Summary      Dashboard stream
// @Description  Upgrades to WebSocket and pushes {"type":"dashboard","data":...} every interval (default 1s, max 10s).
// @Tags         dashboard
// @Param        interval     query  string  false  "Push interval as a Go duration"  example(2s)
// @Param        interval_ms  query  int     false  "Push interval in milliseconds"   example(2000)
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	s := &dashboardStream{h: h, conn: conn, interval: interval, closed: make(chan struct{})}
	go s.drain()
	s.push(c.Request.Context().Done())
}

// drain reads control frames so pongs extend the deadline, and signals
// closed when the client disconnects or stops answering pings.
func (s *dashboardStream) drain() {
	defer close(s.closed)

	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.h.logInfo("ws_read_closed", "err", err)
			return
		}
	}
}

// push sends a snapshot right away, then on every tick, with pings in between.
func (s *dashboardStream) push(reqDone <-chan struct{}) {
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.send(); err != nil {
		s.h.logInfo("ws_write_failed_initial", "err", err)
		return
	}
	for {
		select {
		case <-s.closed:
			return
		case <-reqDone:
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.h.logInfo("ws_ping_failed", "err", err)
				return
			}
		case <-tick.C:
			if err := s.send(); err != nil {
				s.h.logInfo("ws_write_failed", "err", err)
				return
			}
		}
	}
}

func (s *dashboardStream) send() error {
	d := s.h.services.Monitoring.Snapshot()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(wsEnvelope{Type: msgTypeDashboard, Data: d})
}

func (h *Handler) logInfo(msg string, kv ...interface{}) {
	if h.log != nil {
		h.log.Infow(msg, kv...)
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000; out-of-range or
// malformed values fall back to the default.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}
