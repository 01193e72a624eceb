package websocket

import "encoding/json"

// Client -> server message types
const (
	MessageTypePing          = "ping"
	MessageTypeOpenChat      = "open_chat"
	MessageTypeCloseChat     = "close_chat"
	MessageTypeSendMessage   = "send_message"
	MessageTypeTyping        = "typing"
	MessageTypeCallInitiate  = "call_initiate"
	MessageTypeCallAccept    = "call_accept"
	MessageTypeCallReject    = "call_reject"
	MessageTypeCallEnd       = "call_end"
	MessageTypeMediaQuery    = "media_query"
	MessageTypeMediaCategory = "media_category"
)

// Server -> client message types
const (
	MessageTypePong         = "pong"
	MessageTypeChatOpened   = "chat_opened"
	MessageTypeMessageSent  = "message_sent"
	MessageTypeMessages     = "messages"
	MessageTypeTypingState  = "typing"
	MessageTypeCallState    = "call_state"
	MessageTypeMediaResults = "media_results"
	MessageTypeError        = "error"
)

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	RoomID    string      `json:"room_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// InboundMessage is WSMessage with Data left raw for per-type decoding.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type OpenChatData struct {
	RemoteID string `json:"remote_id" validate:"required"`
}

type SendMessageData struct {
	TempID string     `json:"temp_id,omitempty"`
	Text   string     `json:"text"`
	Media  *MediaData `json:"media,omitempty"`
}

type MediaData struct {
	Type   string `json:"type" validate:"required,oneof=gifs stickers"`
	URL    string `json:"url" validate:"required,url"`
	Width  int    `json:"width" validate:"min=0"`
	Height int    `json:"height" validate:"min=0"`
}

type CallActionData struct {
	CallID string `json:"call_id" validate:"required"`
}

type MediaQueryData struct {
	Kind     string `json:"kind" validate:"omitempty,oneof=gifs stickers"`
	Query    string `json:"query"`
	Category string `json:"category"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
