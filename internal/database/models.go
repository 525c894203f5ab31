package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Username     string
	DisplayName  string
	Email        string
	Avatar       sql.NullString
	PasswordHash string
	IsOnline     bool
	LastSeen     sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Conversation struct {
	Id           int
	ExternalId   string
	Name         string
	IsGroup      bool
	CreatorId    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Participants []Participant
}

type Participant struct {
	Id             int
	ConversationId int
	UserId         int
	Username       string
	Role           string
	LastReadAt     sql.NullTime
	JoinedAt       time.Time
}

type Message struct {
	Id             int
	ConversationId int
	SenderId       int
	Body           string
	Attachment     sql.NullString
	CreatedAt      time.Time
}

type CreateAccountParams struct {
	Username     string
	DisplayName  string
	Email        string
	PasswordHash string
}

type CreateConversationParams struct {
	Name       string
	ExternalId string
	IsGroup    bool
	CreatorId  int
	MemberIds  []int
}

type CreateMessageParams struct {
	ConversationId int
	SenderId       int
	Body           string
	Attachment     string
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)
