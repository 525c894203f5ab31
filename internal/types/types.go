package types

import (
	"time"
)

type User struct {
	Id          int        `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Avatar      string     `json:"avatar,omitempty"`
	IsOnline    bool       `json:"is_online"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	Password    string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

type Conversation struct {
	Id           int           `json:"id"`
	ExternalId   string        `json:"external_id"`
	Name         string        `json:"name,omitempty"`
	IsGroup      bool          `json:"is_group"`
	CreatorId    int           `json:"creator_id"`
	Participants []Participant `json:"participants,omitempty"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at,omitempty"`
}

type Participant struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsOnline bool   `json:"is_online,omitempty"`
}
