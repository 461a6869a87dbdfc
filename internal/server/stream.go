package server

import (
	"encoding/json"
	"net/http"
	"time"

	"iris-service/internal/contract"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// StreamReply is one frame sent back on a prediction stream. Exactly one
// field is set.
type StreamReply struct {
	Result *contract.PredictionResult `json:"result,omitempty"`
	Error  *ErrorBody                 `json:"error,omitempty"`
}

// handleStream upgrades to a websocket and answers each text frame, which
// carries a predict request body, with one StreamReply. Invalid frames do
// not close the connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	s.clientsMu.Lock()
	if s.closing {
		s.clientsMu.Unlock()
		logger.Debug().Msg("prediction stream refused during shutdown")
		closeGoingAway(conn)
		return
	}
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()
	if s.opts.Streams != nil {
		s.opts.Streams.StreamOpened()
	}

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		if s.opts.Streams != nil {
			s.opts.Streams.StreamClosed()
		}
		logger.Debug().Msg("prediction stream closed")
	}()

	conn.SetReadLimit(s.opts.MaxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go pinger(conn, done)

	logger.Debug().Msg("prediction stream opened")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("prediction stream ended")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var reply StreamReply
		if msgType != websocket.TextMessage {
			reply.Error = &ErrorBody{Error: codeValidation, Message: "expected a text frame"}
		} else {
			result, _, errBody := s.predict(r, data)
			if errBody != nil {
				reply.Error = errBody
			} else {
				reply.Result = &result
			}
		}

		payload, err := json.Marshal(reply)
		if err != nil {
			logger.Error().Err(err).Msg("failed to encode stream reply")
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Debug().Err(err).Msg("failed to write stream reply")
			return
		}
	}
}

// pinger keeps the connection alive until done is closed. It only uses
// WriteControl, which may run concurrently with the handler's writes.
func pinger(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
