// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"net/http"
	"sync"

	"beatclock/internal/clock"
	applog "beatclock/internal/log"

	"github.com/gorilla/websocket"
)

// WebSocketTransport broadcasts status snapshots as JSON to every
// connected client on /status. Slow consumers never stall the
// publisher: snapshots are queued on a buffered channel and dropped
// when it is full.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan clock.Status
	done      chan struct{}
	closeOnce sync.Once
	server    *http.Server
	wg        sync.WaitGroup
}

// NewWebSocketTransport starts an HTTP server on addr serving the
// /status websocket endpoint and begins broadcasting.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	t := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Status is diagnostic and read-only; any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan clock.Status, 256),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", t.handleStatus)
	t.server = &http.Server{Addr: addr, Handler: mux}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		applog.Infof("Transport: WebSocket status server on %s", addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("Transport: WebSocket server error: %v", err)
		}
	}()

	t.wg.Add(1)
	go t.run()

	return t
}

func (t *WebSocketTransport) handleStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("Transport: WebSocket upgrade error: %v", err)
		return
	}

	t.clientsMu.Lock()
	t.clients[conn] = true
	total := len(t.clients)
	t.clientsMu.Unlock()
	applog.Infof("Transport: WebSocket client connected, total: %d", total)

	// Reader goroutine exists only to observe the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.clientsMu.Lock()
				delete(t.clients, conn)
				total := len(t.clients)
				t.clientsMu.Unlock()
				conn.Close()
				applog.Infof("Transport: WebSocket client disconnected, total: %d", total)
				return
			}
		}
	}()
}

func (t *WebSocketTransport) run() {
	defer t.wg.Done()
	for {
		select {
		case status := <-t.broadcast:
			t.clientsMu.Lock()
			for client := range t.clients {
				if err := client.WriteJSON(status); err != nil {
					applog.Warnf("Transport: dropping WebSocket client: %v", err)
					client.Close()
					delete(t.clients, client)
				}
			}
			t.clientsMu.Unlock()
		case <-t.done:
			return
		}
	}
}

// Send queues a snapshot for broadcast. Never blocks; the snapshot is
// dropped when the queue is full or the transport is closed.
func (t *WebSocketTransport) Send(status clock.Status) error {
	select {
	case <-t.done:
		return fmt.Errorf("websocket transport is closed")
	default:
	}
	select {
	case t.broadcast <- status:
	default:
	}
	return nil
}

// Close disconnects all clients and shuts the server down. Safe to call
// more than once.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)

		t.clientsMu.Lock()
		for client := range t.clients {
			client.Close()
		}
		t.clients = make(map[*websocket.Conn]bool)
		t.clientsMu.Unlock()

		err = t.server.Close()
		t.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
