package webchart

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ConnectionPool owns the websocket connections of one conversation. It
// centralizes broadcasting, write-error eviction and idle detection so the
// HTTP layer stays small. When the last connection leaves and the idle
// timeout elapses, onIdle fires so the conversation can stop its state
// forwarder.
type ConnectionPool struct {
	convID      string
	mu          sync.Mutex
	conns       map[*websocket.Conn]struct{}
	idleTimer   *time.Timer
	idleTimeout time.Duration
	onIdle      func()
	logger      zerolog.Logger
}

func NewConnectionPool(convID string, idleTimeout time.Duration, onIdle func(), logger zerolog.Logger) *ConnectionPool {
	return &ConnectionPool{
		convID:      convID,
		conns:       map[*websocket.Conn]struct{}{},
		idleTimeout: idleTimeout,
		onIdle:      onIdle,
		logger:      logger.With().Str("component", "conn_pool").Str("conv_id", convID).Logger(),
	}
}

func (cp *ConnectionPool) Add(conn *websocket.Conn) {
	if cp == nil || conn == nil {
		return
	}
	cp.mu.Lock()
	cp.conns[conn] = struct{}{}
	cp.stopIdleTimerLocked()
	cp.mu.Unlock()
}

func (cp *ConnectionPool) Remove(conn *websocket.Conn) {
	if cp == nil || conn == nil {
		return
	}
	cp.mu.Lock()
	delete(cp.conns, conn)
	cp.scheduleIdleTimerLocked()
	cp.mu.Unlock()
	_ = conn.Close()
}

// Broadcast writes data to every connection; connections that fail the write
// are dropped on the spot.
func (cp *ConnectionPool) Broadcast(data []byte) {
	if cp == nil || len(data) == 0 {
		return
	}
	cp.mu.Lock()
	for conn := range cp.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			cp.logger.Warn().Err(err).Msg("ws broadcast failed, dropping connection")
			delete(cp.conns, conn)
			_ = conn.Close()
		}
	}
	cp.scheduleIdleTimerLocked()
	cp.mu.Unlock()
}

func (cp *ConnectionPool) Count() int {
	if cp == nil {
		return 0
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.conns)
}

func (cp *ConnectionPool) CloseAll() {
	if cp == nil {
		return
	}
	cp.mu.Lock()
	for conn := range cp.conns {
		_ = conn.Close()
		delete(cp.conns, conn)
	}
	cp.stopIdleTimerLocked()
	cp.mu.Unlock()
}

func (cp *ConnectionPool) stopIdleTimerLocked() {
	if cp.idleTimer != nil {
		cp.idleTimer.Stop()
		cp.idleTimer = nil
	}
}

func (cp *ConnectionPool) scheduleIdleTimerLocked() {
	if len(cp.conns) != 0 || cp.idleTimeout <= 0 || cp.onIdle == nil {
		cp.stopIdleTimerLocked()
		return
	}
	cp.stopIdleTimerLocked()
	cp.idleTimer = time.AfterFunc(cp.idleTimeout, cp.triggerIdle)
}

func (cp *ConnectionPool) triggerIdle() {
	if cp == nil {
		return
	}
	var callback func()
	cp.mu.Lock()
	if len(cp.conns) == 0 {
		callback = cp.onIdle
	}
	cp.idleTimer = nil
	cp.mu.Unlock()
	if callback != nil {
		callback()
	}
}
