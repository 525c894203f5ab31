package database

import "time"

type ConvoRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetUserById(userId int) (User, error)
	GetUserByEmail(email string) (User, error)
	CreateConversation(params CreateConversationParams) (Conversation, error)
	GetConversationByExternalId(externalId string) (Conversation, error)
	GetOrCreateDirectConversation(userId, peerId int, externalId string) (Conversation, error)
	IsParticipant(conversationId, userId int) (bool, error)
	ListParticipants(conversationId int) ([]Participant, error)
	ListConversationsForUser(userId int) ([]Conversation, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	SetUserPresence(userId int, online bool, lastSeen time.Time) error
	UpdateLastRead(conversationId, userId int, readAt time.Time) error
}
