package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the HTTP layer
	},
}

// WSMessage is a frame sent to the chat client.
type WSMessage struct {
	Type    string `json:"type"` // "token", "done", "error"
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// wsSession is a single chat WebSocket connection. done is closed when
// either pump finishes, so senders never block on a dead connection.
type wsSession struct {
	srv  *Server
	conn *websocket.Conn
	send chan WSMessage
	done chan struct{}
	once sync.Once
}

// handleChatSocket upgrades the connection and streams assistant
// responses token by token.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sess := &wsSession{
		srv:  s,
		conn: conn,
		send: make(chan WSMessage, 64),
		done: make(chan struct{}),
	}

	go sess.writePump()
	sess.readPump(r.Context())
}

// finish marks the session dead. Safe to call from both pumps.
func (sess *wsSession) finish() {
	sess.once.Do(func() { close(sess.done) })
}

// trySend queues a frame unless the session is already dead. Never
// blocks past connection teardown.
func (sess *wsSession) trySend(msg WSMessage) bool {
	select {
	case sess.send <- msg:
		return true
	case <-sess.done:
		return false
	}
}

// readPump reads chat prompts from the peer. Answers stream from a
// separate goroutine so reads (and pong-driven deadline refreshes)
// continue while a long answer is in flight.
func (sess *wsSession) readPump(ctx context.Context) {
	defer sess.finish()

	sess.conn.SetReadLimit(maxMessageSize)
	sess.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
			sess.trySend(WSMessage{Type: "error", Error: "invalid chat message"})
			continue
		}

		go sess.streamAnswer(ctx, req.Message)
	}
}

// streamAnswer forwards assistant tokens for one prompt. The chunk
// channel is always drained to completion, even after the peer is gone,
// so the assistant's turn bookkeeping never leaks an in-flight slot.
func (sess *wsSession) streamAnswer(ctx context.Context, prompt string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	go func() {
		select {
		case <-sess.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	chunks, err := sess.srv.chat.AskStream(ctx, prompt)
	if err != nil {
		sess.trySend(WSMessage{Type: "error", Error: err.Error()})
		return
	}

	failed := false
	for chunk := range chunks {
		if failed {
			continue
		}
		switch {
		case chunk.Err != nil:
			sess.trySend(WSMessage{Type: "error", Error: chunk.Err.Error()})
			failed = true
		case chunk.Content != "":
			if !sess.trySend(WSMessage{Type: "token", Content: chunk.Content}) {
				failed = true
			}
		}
	}
	if !failed {
		sess.trySend(WSMessage{Type: "done"})
	}
}

// writePump writes outgoing frames and keeps the connection alive with
// pings. Owns the connection: closes it on the way out.
func (sess *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.finish()
		sess.conn.Close()
	}()

	for {
		select {
		case msg := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := sess.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-sess.done:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))    //nolint:errcheck
			sess.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return
		}
	}
}
