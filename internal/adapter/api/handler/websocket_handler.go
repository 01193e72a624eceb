package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/service"
	ws "chatcore/internal/infrastructure/websocket"
	"chatcore/internal/usecase"
	"chatcore/pkg/errors"
	"chatcore/pkg/response"
)

type WebSocketHandler struct {
	wsManager     *ws.Manager
	identity      service.IdentityProvider
	views         *usecase.ChatViewUseCase
	calls         *usecase.CallUseCase
	media         *usecase.MediaUseCase
	validator     echo.Validator
	mediaDebounce time.Duration
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewWebSocketHandler(
	wsManager *ws.Manager,
	identity service.IdentityProvider,
	views *usecase.ChatViewUseCase,
	calls *usecase.CallUseCase,
	media *usecase.MediaUseCase,
	validator echo.Validator,
	mediaDebounce time.Duration,
) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:     wsManager,
		identity:      identity,
		views:         views,
		calls:         calls,
		media:         media,
		validator:     validator,
		mediaDebounce: mediaDebounce,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	local, err := localParticipant(c, h.identity)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := ws.NewClient(local.ID, conn)
	if !h.wsManager.Add(client) {
		conn.Close()
		return nil
	}

	session := h.newSession(client, local)
	go client.WritePump()
	go client.ReadPump(h.wsManager, session.handle)
	go session.run()

	return nil
}

// wsSession is the chat view of one connection: its call signaler, media
// picker and at most one open conversation.
type wsSession struct {
	h        *WebSocketHandler
	client   *ws.Client
	local    entity.Participant
	ctx      context.Context
	cancel   context.CancelFunc
	signaler *usecase.CallSignaler
	picker   *usecase.MediaPicker
	wg       sync.WaitGroup

	mutex sync.Mutex
	view  *usecase.ChatView
}

func (h *WebSocketHandler) newSession(client *ws.Client, local entity.Participant) *wsSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsSession{
		h:        h,
		client:   client,
		local:    local,
		ctx:      ctx,
		cancel:   cancel,
		signaler: h.calls.NewSignaler(ctx, local.ID),
		picker:   h.media.NewPicker(ctx, local.ID, usecase.SystemClock, h.mediaDebounce),
	}
}

// run forwards call and picker events until the connection goes away, then
// tears every subscription down.
func (s *wsSession) run() {
	for {
		select {
		case event := <-s.signaler.Events():
			s.sendCallState(event)
		case result := <-s.picker.Results():
			s.sendMediaResults(result)
		case <-s.client.Done():
			s.teardown()
			return
		}
	}
}

func (s *wsSession) teardown() {
	s.cancel()

	s.mutex.Lock()
	if s.view != nil {
		s.view.Close()
		s.view = nil
	}
	s.mutex.Unlock()

	s.signaler.Close()
	s.picker.Close()
	s.wg.Wait()
	log.Printf("WebSocket: session closed for user %s conn %s", s.local.ID, s.client.ID)
}

func (s *wsSession) handle(client *ws.Client, raw []byte) {
	var msg ws.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("WebSocket: Failed to unmarshal message from client %s: %v", client.ID, err)
		client.SendError(errors.CodeBadRequest, "Invalid message format")
		return
	}

	switch msg.Type {
	case ws.MessageTypePing:
		client.SendJSON(ws.WSMessage{Type: ws.MessageTypePong})

	case ws.MessageTypeOpenChat:
		var data ws.OpenChatData
		if s.decode(msg, &data) {
			s.openChat(data.RemoteID)
		}

	case ws.MessageTypeCloseChat:
		s.closeChat()

	case ws.MessageTypeSendMessage:
		var data ws.SendMessageData
		if s.decode(msg, &data) {
			s.sendMessage(data)
		}

	case ws.MessageTypeTyping:
		if view := s.currentView(); view != nil {
			view.NotifyTyping(s.ctx)
		}

	case ws.MessageTypeCallInitiate:
		view := s.currentView()
		if view == nil {
			client.SendError(errors.CodeBadRequest, "Open a chat before calling")
			return
		}
		_, err := s.signaler.Initiate(s.ctx, view.Session().Remote.ID)
		s.reportError("call_initiate", err)

	case ws.MessageTypeCallAccept:
		var data ws.CallActionData
		if s.decode(msg, &data) {
			s.reportError("call_accept", s.signaler.Accept(s.ctx, data.CallID))
		}

	case ws.MessageTypeCallReject:
		var data ws.CallActionData
		if s.decode(msg, &data) {
			s.reportError("call_reject", s.signaler.Reject(s.ctx, data.CallID))
		}

	case ws.MessageTypeCallEnd:
		s.reportError("call_end", s.signaler.End(s.ctx))

	case ws.MessageTypeMediaQuery:
		var data ws.MediaQueryData
		if s.decode(msg, &data) {
			s.switchKind(data.Kind)
			s.picker.SetQuery(data.Query)
		}

	case ws.MessageTypeMediaCategory:
		var data ws.MediaQueryData
		if s.decode(msg, &data) {
			s.switchKind(data.Kind)
			s.picker.SelectCategory(data.Category)
		}

	default:
		log.Printf("WebSocket: Unknown message type '%s' from client %s", msg.Type, client.ID)
		client.SendError(errors.CodeBadRequest, "Unknown message type")
	}
}

func (s *wsSession) decode(msg ws.InboundMessage, out interface{}) bool {
	if err := json.Unmarshal(msg.Data, out); err != nil {
		s.client.SendError(errors.CodeBadRequest, "Invalid "+msg.Type+" payload")
		return false
	}
	if s.h.validator != nil {
		if err := s.h.validator.Validate(out); err != nil {
			s.client.SendError("VALIDATION_ERROR", err.Error())
			return false
		}
	}
	return true
}

// reportError sends err to the client. Call state conflicts are only logged.
func (s *wsSession) reportError(action string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, errors.CodeCallStateConflict) {
		log.Printf("WebSocket: %s ignored for user %s: %v", action, s.local.ID, err)
		return
	}

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		s.client.SendError(appErr.Code, appErr.Message)
		return
	}
	log.Printf("WebSocket: %s failed for user %s: %v", action, s.local.ID, err)
	s.client.SendError(errors.CodeInternal, "An unexpected error occurred")
}

func (s *wsSession) currentView() *usecase.ChatView {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.view
}

func (s *wsSession) openChat(remoteID string) {
	s.closeChat()

	view, err := s.h.views.Open(s.ctx, s.local, remoteID)
	if err != nil {
		s.reportError("open_chat", err)
		return
	}

	s.mutex.Lock()
	s.view = view
	s.mutex.Unlock()

	roomID := view.Session().RoomID
	s.client.SendJSON(ws.WSMessage{Type: ws.MessageTypeChatOpened, RoomID: roomID, Data: view.Session()})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for event := range view.Messages() {
			if event.Err != nil {
				s.reportError("messages", event.Err)
				continue
			}
			s.client.SendJSON(ws.WSMessage{
				Type:   ws.MessageTypeMessages,
				RoomID: roomID,
				Data: map[string]interface{}{
					"room_id":  roomID,
					"initial":  event.Initial,
					"messages": event.Messages,
				},
			})
		}
	}()
	go func() {
		defer s.wg.Done()
		for event := range view.Typing() {
			if event.Err != nil {
				continue
			}
			s.client.SendJSON(ws.WSMessage{
				Type:   ws.MessageTypeTypingState,
				RoomID: roomID,
				Data:   map[string]interface{}{"room_id": roomID, "is_typing": event.IsTyping},
			})
		}
	}()
}

func (s *wsSession) closeChat() {
	s.mutex.Lock()
	view := s.view
	s.view = nil
	s.mutex.Unlock()

	if view != nil {
		view.Close()
	}
}

func (s *wsSession) sendMessage(data ws.SendMessageData) {
	view := s.currentView()
	if view == nil {
		s.client.SendError(errors.CodeBadRequest, "Open a chat before sending")
		return
	}

	input := usecase.SendMessageInput{Text: data.Text}
	if data.Media != nil {
		input.Media = &entity.Media{
			Type:   entity.MediaKind(data.Media.Type),
			URL:    data.Media.URL,
			Width:  data.Media.Width,
			Height: data.Media.Height,
		}
	}

	message, err := view.Send(s.ctx, input)
	if err != nil {
		s.reportError("send_message", err)
		return
	}
	s.client.SendJSON(ws.WSMessage{
		Type:   ws.MessageTypeMessageSent,
		RoomID: view.Session().RoomID,
		Data:   map[string]string{"temp_id": data.TempID, "message_id": message.ID},
	})
}

func (s *wsSession) switchKind(kind string) {
	if kind == "" || entity.MediaKind(kind) == s.picker.Kind() {
		return
	}
	s.picker.SetKind(entity.MediaKind(kind))
}

func (s *wsSession) sendCallState(event usecase.CallStateEvent) {
	data := map[string]interface{}{
		"state": event.State,
		"call":  event.Call,
	}
	if event.Err != nil {
		data["error"] = event.Err.Error()
	}
	s.client.SendJSON(ws.WSMessage{Type: ws.MessageTypeCallState, Data: data})
}

func (s *wsSession) sendMediaResults(result usecase.MediaPickerResult) {
	data := map[string]interface{}{
		"kind":     result.Kind,
		"query":    result.Query,
		"category": result.Category,
		"items":    result.Items,
	}
	if result.Err != nil {
		data["error"] = result.Err.Error()
	}
	s.client.SendJSON(ws.WSMessage{Type: ws.MessageTypeMediaResults, Data: data})
}
