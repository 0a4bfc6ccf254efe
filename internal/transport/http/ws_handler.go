package http

import (
	"encoding/json"
	"log"
	"net/http"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler is the broadcast gateway: it turns inbound websocket messages into
// game-service calls and fans the resulting domain events back out. The core
// never touches a connection directly.
type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Name string `json:"name"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game.
// `role=host` marks the host screen: it may drive the game and sees the
// correct answer; everyone else is a player or passive observer.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	isHost := r.URL.Query().Get("role") == "host"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := h.service.NewConn()
	updates, cancel := h.service.Subscribe()
	defer cancel()
	defer h.service.Disconnect(connID)

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				msg := outboundMessage{Type: string(ev.Type), Payload: ev.Payload}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
				// Event payloads withhold the correct answer, so follow each
				// question with a host-only snapshot carrying the full question.
				if isHost && (ev.Type == domain.EventGameStarted || ev.Type == domain.EventNextQuestion) {
					select {
					case send <- outboundMessage{Type: "gameState", Payload: h.service.Snapshot(true)}:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Fresh observers get the current state as a snapshot, never a backlog of
	// historical events.
	send <- outboundMessage{Type: "gameState", Payload: h.service.Snapshot(isHost)}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "joinGame":
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Name == "" {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid join payload"}}
				continue
			}
			snap, err := h.service.Join(r.Context(), connID, payload.Name)
			if err != nil {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage{Type: "joined", Payload: snap}

		case "submitAnswer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == "" {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if err := h.service.SubmitAnswer(r.Context(), connID, payload.Option); err != nil {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage{Type: "answerSubmitted", Payload: payload}

		case "startGame":
			if !isHost {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "only the host can start the game"}}
				continue
			}
			if err := h.service.StartGame(r.Context()); err != nil {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}

		case "nextQuestion":
			if !isHost {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "only the host can advance"}}
				continue
			}
			if err := h.service.Advance(r.Context()); err != nil {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}

		case "resetGame":
			if !isHost {
				send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "only the host can reset"}}
				continue
			}
			h.service.Reset(r.Context())

		default:
			send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
