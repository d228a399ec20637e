package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 30 * time.Second
	maxFrame   = 8192
)

var viewerUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// inbound is a frame sent by a viewer.
type inbound struct {
	Type         string               `json:"type"`
	Measurements *domain.Measurements `json:"measurements,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// outbound is a frame sent to a viewer.
type outbound struct {
	Type   string `json:"type"`
	Status any    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

var errUnknownFrame = errors.New("unknown message type")

func (s *Server) handleLocalWS(w http.ResponseWriter, r *http.Request) {
	conn, err := viewerUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "role", domain.RoleLocal, "error", err)
		return
	}

	sess := s.deps.Sessions.OpenLocal(context.Background())
	defer s.deps.Sessions.Release(sess.ID())

	vc := newViewerConn(conn, s.logger.With("session_id", sess.ID(), "role", domain.RoleLocal))
	go vc.readLoop(func(ctx context.Context, in inbound) error {
		if in.Type != "reset" {
			return errUnknownFrame
		}
		return sess.Reset(ctx)
	})
	writeLoop(vc, sess.Updates())
}

func (s *Server) handleAuthorityWS(w http.ResponseWriter, r *http.Request) {
	conn, err := viewerUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "role", domain.RoleAuthority, "error", err)
		return
	}

	sess := s.deps.Sessions.OpenAuthority(context.Background())
	defer s.deps.Sessions.Release(sess.ID())

	vc := newViewerConn(conn, s.logger.With("session_id", sess.ID(), "role", domain.RoleAuthority))
	go vc.readLoop(func(ctx context.Context, in inbound) error {
		switch in.Type {
		case "measurements":
			if in.Measurements == nil {
				return errors.New("measurements missing")
			}
			return sess.SetMeasurements(ctx, *in.Measurements)
		case "broadcast":
			return sess.Broadcast(ctx, in.Message)
		default:
			return errUnknownFrame
		}
	})
	writeLoop(vc, sess.Updates())
}

// viewerConn pairs a websocket with the reply queue its reader feeds. Only
// writeLoop writes to the socket.
type viewerConn struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	replies chan outbound
	done    chan struct{}
}

func newViewerConn(conn *websocket.Conn, logger *slog.Logger) *viewerConn {
	return &viewerConn{
		conn:    conn,
		logger:  logger,
		replies: make(chan outbound, 8),
		done:    make(chan struct{}),
	}
}

// readLoop decodes frames and hands them to handle until the socket fails.
// Malformed frames are answered with an error and do not close the socket.
func (vc *viewerConn) readLoop(handle func(context.Context, inbound) error) {
	defer close(vc.done)

	vc.conn.SetReadLimit(maxFrame)
	_ = vc.conn.SetReadDeadline(time.Now().Add(pongWait))
	vc.conn.SetPongHandler(func(string) error {
		return vc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := vc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				vc.logger.Warn("viewer read failed", "error", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			vc.reply(outbound{Type: "error", Error: "invalid message"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err = handle(ctx, in)
		cancel()
		if err != nil {
			vc.reply(outbound{Type: "error", Error: err.Error()})
			continue
		}
		vc.reply(outbound{Type: "ack"})
	}
}

func (vc *viewerConn) reply(msg outbound) {
	select {
	case vc.replies <- msg:
	default:
		vc.logger.Warn("reply queue full, dropping", "type", msg.Type)
	}
}

// writeLoop pushes every status update and reply to the viewer and keeps the
// connection alive with pings. It returns when either side goes away.
func writeLoop[T any](vc *viewerConn, updates <-chan T) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = vc.conn.Close()
		<-vc.done
	}()

	for {
		var msg outbound
		select {
		case <-vc.done:
			return
		case st := <-updates:
			msg = outbound{Type: "status", Status: st}
		case msg = <-vc.replies:
		case <-ticker.C:
			_ = vc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := vc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		_ = vc.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := vc.conn.WriteJSON(msg); err != nil {
			vc.logger.Debug("viewer write failed", "error", err)
			return
		}
	}
}
