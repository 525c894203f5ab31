package server

import (
	"encoding/json"
	"time"
)

// Client-emitted event names.
const (
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"
	EventTyping           = "typing"
	EventMarkRead         = "mark_read"
)

// Server-emitted event names.
const (
	EventMessageNew  = "message:new"
	EventMessageSent = "message:sent"
	EventUserStatus  = "user:status"
	EventUserTyping  = "user:typing"
	EventMessageRead = "message:read"
	EventError       = "error"
)

// ClientEvent is the envelope for everything a connection sends us.
// Data is decoded by the handler selected from the dispatch table,
// not by the transport layer.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type JoinConversation struct {
	ConversationId string `json:"conversation_id"`
}

type SendMessage struct {
	ConversationId string `json:"conversation_id"`
	Content        string `json:"content"`
	ReceiverId     int    `json:"receiver_id,omitempty"`
}

type Typing struct {
	ConversationId string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

type MarkRead struct {
	MessageId      int    `json:"message_id"`
	ConversationId string `json:"conversation_id"`
}

type NewMessage struct {
	Id             int       `json:"id"`
	ConversationId string    `json:"conversation_id"`
	SenderId       int       `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
	Timestamp      time.Time `json:"timestamp"`
}

type MessageSent struct {
	Id             int       `json:"id"`
	ConversationId string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

type UserStatus struct {
	UserId   int        `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen"`
}

type UserTyping struct {
	UserId         int    `json:"user_id"`
	Username       string `json:"username"`
	ConversationId string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

type MessageRead struct {
	MessageId      int       `json:"message_id"`
	ConversationId string    `json:"conversation_id"`
	UserId         int       `json:"user_id"`
	Username       string    `json:"username"`
	ReadAt         time.Time `json:"read_at"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

func NewErrorEvent(message string) *ServerEvent {
	return &ServerEvent{
		Event: EventError,
		Data:  ErrorEvent{Message: message},
	}
}

func ErrNotAParticipant() *ServerEvent {
	return NewErrorEvent("not a participant of this conversation")
}

func ErrConversationNotFound() *ServerEvent {
	return NewErrorEvent("conversation not found")
}

func ErrEmptyMessage() *ServerEvent {
	return NewErrorEvent("message content cannot be empty")
}

func ErrMessageTooLong() *ServerEvent {
	return NewErrorEvent("message content exceeds maximum length")
}

func ErrNotJoined() *ServerEvent {
	return NewErrorEvent("join the conversation before sending events to it")
}

func ErrInternalError() *ServerEvent {
	return NewErrorEvent("internal server error")
}

func ErrServiceUnavailable() *ServerEvent {
	return NewErrorEvent("service unavailable")
}

func ErrInvalidEvent() *ServerEvent {
	return NewErrorEvent("invalid event format")
}

func ErrUnknownEvent(name string) *ServerEvent {
	return NewErrorEvent("unknown event: " + name)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
