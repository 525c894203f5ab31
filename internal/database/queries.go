package database

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	createParticipantQuery = "INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at) " +
		"VALUES ($1, $2, $3, $4) RETURNING id, conversation_id, user_id, role"
)

func (db *PgConvoRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (username, display_name, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, username, display_name, email, created_at, updated_at",
		params.Username,
		params.DisplayName,
		params.Email,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.DisplayName,
		&u.Email,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgConvoRepository) GetUserById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, display_name, email, avatar, is_online, last_seen, created_at, updated_at "+
			"FROM users WHERE id = $1 LIMIT 1",
		userId,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.DisplayName,
		&u.Email,
		&u.Avatar,
		&u.IsOnline,
		&u.LastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgConvoRepository) GetUserByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, display_name, email, password_hash, is_online, last_seen, created_at, updated_at "+
			"FROM users WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.DisplayName,
		&u.Email,
		&u.PasswordHash,
		&u.IsOnline,
		&u.LastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgConvoRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO conversations (external_id, name, is_group, creator_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, external_id, name, is_group, creator_id, created_at, updated_at",
		params.ExternalId,
		params.Name,
		params.IsGroup,
		params.CreatorId,
		time.Now().UTC(),
	)

	var conv Conversation
	err = res.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.Name,
		&conv.IsGroup,
		&conv.CreatorId,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return Conversation{}, err
	}

	// the creator is always an admin participant
	_, err = tx.Exec(createParticipantQuery, conv.Id, params.CreatorId, RoleAdmin, time.Now().UTC())
	if err != nil {
		return Conversation{}, err
	}

	for _, memberId := range params.MemberIds {
		if memberId == params.CreatorId {
			continue
		}
		_, err = tx.Exec(createParticipantQuery, conv.Id, memberId, RoleMember, time.Now().UTC())
		if err != nil {
			return Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Conversation{}, err
	}

	return conv, nil
}

func (db *PgConvoRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, is_group, creator_id, created_at, updated_at "+
			"FROM conversations WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.Name,
		&conv.IsGroup,
		&conv.CreatorId,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	return conv, err
}

// GetOrCreateDirectConversation returns the existing 1:1 conversation
// between the two users, creating one with the supplied external id if
// none exists. The caller generates the external id so id generation
// stays out of the storage layer.
func (db *PgConvoRepository) GetOrCreateDirectConversation(userId, peerId int, externalId string) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT c.id, c.external_id, c.name, c.is_group, c.creator_id, c.created_at, c.updated_at "+
			"FROM conversations c "+
			"JOIN conversation_participants p1 ON p1.conversation_id = c.id AND p1.user_id = $1 "+
			"JOIN conversation_participants p2 ON p2.conversation_id = c.id AND p2.user_id = $2 "+
			"WHERE c.is_group = FALSE LIMIT 1",
		userId,
		peerId,
	)

	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.Name,
		&conv.IsGroup,
		&conv.CreatorId,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err == nil {
		return conv, nil
	}
	if err != sql.ErrNoRows {
		return Conversation{}, fmt.Errorf("lookup direct conversation: %w", err)
	}

	return db.CreateConversation(CreateConversationParams{
		ExternalId: externalId,
		IsGroup:    false,
		CreatorId:  userId,
		MemberIds:  []int{peerId},
	})
}

func (db *PgConvoRepository) IsParticipant(conversationId, userId int) (bool, error) {
	res := db.conn.QueryRow(
		"SELECT id FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2 LIMIT 1",
		conversationId,
		userId,
	)

	var id int
	err := res.Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (db *PgConvoRepository) ListParticipants(conversationId int) ([]Participant, error) {
	rows, err := db.conn.Query(
		"SELECT p.id, p.conversation_id, p.user_id, u.username, p.role, p.last_read_at, p.joined_at "+
			"FROM conversation_participants AS p "+
			"JOIN users AS u ON p.user_id = u.id WHERE p.conversation_id = $1",
		conversationId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants = make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err = rows.Scan(&p.Id, &p.ConversationId, &p.UserId, &p.Username, &p.Role, &p.LastReadAt, &p.JoinedAt); err != nil {
			break
		}

		participants = append(participants, p)
	}

	return participants, err
}

func (db *PgConvoRepository) ListConversationsForUser(userId int) ([]Conversation, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.external_id, c.name, c.is_group, c.creator_id, c.created_at, c.updated_at "+
			"FROM conversation_participants p JOIN conversations c ON c.id = p.conversation_id "+
			"WHERE p.user_id = $1",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err = rows.Scan(&conv.Id, &conv.ExternalId, &conv.Name, &conv.IsGroup, &conv.CreatorId, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			break
		}

		conversations = append(conversations, conv)
	}

	return conversations, err
}

func (db *PgConvoRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	var attachment sql.NullString
	if params.Attachment != "" {
		attachment = sql.NullString{String: params.Attachment, Valid: true}
	}

	res := db.conn.QueryRow(
		"INSERT INTO messages (conversation_id, sender_id, body, attachment, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, conversation_id, sender_id, body, attachment, created_at",
		params.ConversationId,
		params.SenderId,
		params.Body,
		attachment,
		time.Now().UTC(),
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.ConversationId,
		&msg.SenderId,
		&msg.Body,
		&msg.Attachment,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgConvoRepository) SetUserPresence(userId int, online bool, lastSeen time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE users SET is_online = $2, last_seen = $3, updated_at = $3 WHERE id = $1",
		userId,
		online,
		lastSeen,
	)

	return err
}

func (db *PgConvoRepository) UpdateLastRead(conversationId, userId int, readAt time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE conversation_participants SET last_read_at = $3 WHERE conversation_id = $1 AND user_id = $2",
		conversationId,
		userId,
		readAt,
	)

	return err
}
