package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockConvoRepository struct {
	mock.Mock
}

func (m *MockConvoRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockConvoRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockConvoRepository) GetUserById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockConvoRepository) GetUserByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockConvoRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	args := m.Called(params)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockConvoRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	args := m.Called(externalId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockConvoRepository) GetOrCreateDirectConversation(userId, peerId int, externalId string) (Conversation, error) {
	args := m.Called(userId, peerId, externalId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockConvoRepository) IsParticipant(conversationId, userId int) (bool, error) {
	args := m.Called(conversationId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockConvoRepository) ListParticipants(conversationId int) ([]Participant, error) {
	args := m.Called(conversationId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockConvoRepository) ListConversationsForUser(userId int) ([]Conversation, error) {
	args := m.Called(userId)
	return args.Get(0).([]Conversation), args.Error(1)
}
func (m *MockConvoRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockConvoRepository) SetUserPresence(userId int, online bool, lastSeen time.Time) error {
	args := m.Called(userId, online, lastSeen)
	return args.Error(0)
}
func (m *MockConvoRepository) UpdateLastRead(conversationId, userId int, readAt time.Time) error {
	args := m.Called(conversationId, userId, readAt)
	return args.Error(0)
}
