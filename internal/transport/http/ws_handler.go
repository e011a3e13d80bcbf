package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ServeWS upgrades to a websocket that streams the participant's duel events and accepts
// "join" and "answer" commands.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		participantID = r.Header.Get(ParticipantHeader)
	}
	if participantID == "" {
		http.Error(w, "missing participantId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	h.serveSession(conn, participantID)
}

// wsConn is the part of *websocket.Conn a session uses.
type wsConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

func (h *Handler) serveSession(conn wsConn, participantID string) {
	defer conn.Close()

	// The request context is not cancelled on hijacked connections; tie it to the read loop instead.
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	updates, unsubscribe := h.hub.Subscribe(participantID)
	defer unsubscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.String("participantId", participantID), zap.Error(err))
				// Unblocks ReadJSON so the read loop ends too.
				_ = conn.Close()
				return
			}
		}
	}()

	// reply reports false once the writer is gone.
	reply := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "duel", Payload: event}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	replyError := func(err error) bool {
		return reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Status: statusFor(err)}})
	}
	badRequest := func(message string) bool {
		return reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message, Status: http.StatusBadRequest}})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var ok bool
		switch inbound.Type {
		case "join":
			summary, err := h.service.Join(ctx, participantID)
			if err != nil {
				ok = replyError(err)
				break
			}
			ok = reply(outboundMessage[any]{Type: "joined", Payload: summary})
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				ok = badRequest("invalid answer payload")
				break
			}
			result, err := h.service.SubmitAnswer(ctx, participantID, payload.Answer)
			if err != nil {
				ok = replyError(err)
				break
			}
			ok = reply(outboundMessage[any]{Type: "answerResult", Payload: result})
		default:
			ok = badRequest("unsupported message type")
		}
		if !ok {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
