package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"convochat/internal/database"
	"convochat/internal/stats"

	"github.com/teris-io/shortid"
)

// Metric names registered with the stats provider.
const (
	statActiveClients   = "NumActiveClients"
	statActiveRooms     = "NumActiveRooms"
	statMessagesRelayed = "NumMessagesRelayed"
	statPresenceUpdates = "NumPresenceUpdates"
)

type joinRequest struct {
	client         *Client
	conversationId string
}

// roomBroadcast is a fan-out request routed through the hub to a
// loaded room. Broadcasts for rooms that are not loaded are dropped:
// there are no connections to deliver to.
type roomBroadcast struct {
	roomId     string
	event      *ServerEvent
	skipUserId int
}

// directMessage is a send_message with an implied receiver instead of
// an existing conversation target.
type directMessage struct {
	client     *Client
	receiverId int
	content    string
}

type unloadRoomRequest struct {
	roomId string
}

type stopRequest struct {
	done chan struct{}
}

type ChatServer struct {
	log   *log.Logger
	db    database.ConvoRepository
	stats stats.StatsProvider

	// session registry: every live connection, indexed by user id for
	// O(1) presence decisions. Guarded by clientsLock, which is never
	// held across repository calls.
	clients     map[*Client]struct{}
	userMap     map[int]map[*Client]struct{}
	clientsLock sync.Mutex

	rooms     map[string]*Room
	roomsLock sync.RWMutex

	RegisterChan   chan *Client
	DeregisterChan chan *Client
	joinChan       chan *joinRequest
	directChan     chan *directMessage
	broadcastChan  chan *roomBroadcast
	unloadRoomChan chan unloadRoomRequest
	stop           chan stopRequest
}

func NewChatServer(logger *log.Logger, db database.ConvoRepository, su stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[int]map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		RegisterChan:   make(chan *Client),
		DeregisterChan: make(chan *Client),
		joinChan:       make(chan *joinRequest, 256),
		directChan:     make(chan *directMessage, 256),
		broadcastChan:  make(chan *roomBroadcast, 256),
		unloadRoomChan: make(chan unloadRoomRequest, 256),
		stop:           make(chan stopRequest),
	}

	su.RegisterMetric(statActiveClients)
	su.RegisterMetric(statActiveRooms)
	su.RegisterMetric(statMessagesRelayed)
	su.RegisterMetric(statPresenceUpdates)

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.log.Printf("adding connection from %q", client.user.Username)
			if first := cs.addClient(client); first {
				go cs.announcePresence(client.user.Id, true)
			}
		case client := <-cs.DeregisterChan:
			cs.log.Printf("removing connection from %q", client.user.Username)
			if last := cs.removeClient(client); last {
				go cs.announcePresence(client.user.Id, false)
			}
		case join := <-cs.joinChan:
			cs.handleJoin(join)
		case dm := <-cs.directChan:
			cs.handleDirectMessage(dm)
		case bc := <-cs.broadcastChan:
			if room, ok := cs.getRoom(bc.roomId); ok {
				select {
				case room.relayChan <- bc:
				default:
					cs.log.Printf("relay channel full on room %q", bc.roomId)
				}
			}
		case req := <-cs.unloadRoomChan:
			if room, ok := cs.getRoom(req.roomId); ok {
				cs.removeRoom(req.roomId)
				done := make(chan string)
				room.exit <- exitReq{done: done}
				<-done
			}
		case req := <-cs.stop:
			cs.log.Println("shutting down rooms")
			cs.roomsLock.Lock()
			for id, room := range cs.rooms {
				cs.log.Printf("shutting down room %q", id)
				done := make(chan string)
				room.exit <- exitReq{done: done}
				<-done
				delete(cs.rooms, id)
			}
			cs.roomsLock.Unlock()

			cs.clientsLock.Lock()
			for c := range cs.clients {
				c.stopClient()
			}
			cs.clientsLock.Unlock()

			close(req.done)
			return
		}
	}
}

// handleJoin routes a join to the conversation's room, loading the
// room first if no connection is currently subscribed to it.
func (cs *ChatServer) handleJoin(join *joinRequest) {
	room, ok := cs.getRoom(join.conversationId)
	if !ok {
		conv, err := cs.db.GetConversationByExternalId(join.conversationId)
		if err != nil {
			cs.log.Printf("GetConversationByExternalId: %v", err)
			if errors.Is(err, sql.ErrNoRows) {
				join.client.queueEvent(ErrConversationNotFound())
			} else {
				join.client.queueEvent(ErrInternalError())
			}
			return
		}

		room = newRoom(cs, conv.Id, conv.ExternalId)
		cs.addRoom(room.externalId, room)
		go room.start()
	}

	select {
	case room.joinChan <- join:
	default:
		cs.log.Printf("join channel full on room %q", room.externalId)
		join.client.queueEvent(ErrServiceUnavailable())
	}
}

// handleDirectMessage resolves or creates the 1:1 conversation for a
// send_message that named a receiver, persists the message, then
// delivers it to every live session of both users. Runs in the hub
// goroutine so delivery order matches persistence order, the same
// guarantee the room goroutine gives conversation-targeted sends.
func (cs *ChatServer) handleDirectMessage(dm *directMessage) {
	content, ev := validateContent(dm.content)
	if ev != nil {
		dm.client.queueEvent(ev)
		return
	}

	sid, err := shortid.Generate()
	if err != nil {
		cs.log.Println("shortid:", err)
		dm.client.queueEvent(ErrInternalError())
		return
	}

	conv, err := cs.db.GetOrCreateDirectConversation(dm.client.user.Id, dm.receiverId, sid)
	if err != nil {
		cs.log.Println("GetOrCreateDirectConversation:", err)
		dm.client.queueEvent(ErrInternalError())
		return
	}

	msg, err := cs.db.CreateMessage(database.CreateMessageParams{
		ConversationId: conv.Id,
		SenderId:       dm.client.user.Id,
		Body:           content,
	})
	if err != nil {
		cs.log.Println("CreateMessage:", err)
		dm.client.queueEvent(ErrInternalError())
		return
	}

	cs.stats.Incr(statMessagesRelayed)

	dm.client.queueEvent(&ServerEvent{
		Event: EventMessageSent,
		Data: MessageSent{
			Id:             msg.Id,
			ConversationId: conv.ExternalId,
			Timestamp:      msg.CreatedAt,
		},
	})

	newMsg := &ServerEvent{
		Event: EventMessageNew,
		Data: NewMessage{
			Id:             msg.Id,
			ConversationId: conv.ExternalId,
			SenderId:       dm.client.user.Id,
			SenderUsername: dm.client.user.Username,
			Text:           msg.Body,
			CreatedAt:      msg.CreatedAt,
			Timestamp:      msg.CreatedAt,
		},
	}

	// A 1:1 conversation's subscribers are exactly the two users, so
	// per-user delivery covers every subscribed connection without
	// duplicates regardless of whether the room is loaded.
	cs.sendToUser(dm.client.user.Id, newMsg)
	cs.sendToUser(dm.receiverId, newMsg)
}

// announcePresence persists the user's presence flip and fans a
// user:status event out to every loaded room of the user's
// conversations. Runs outside the hub goroutine.
func (cs *ChatServer) announcePresence(userId int, online bool) {
	now := Now()
	if err := cs.db.SetUserPresence(userId, online, now); err != nil {
		cs.log.Println("SetUserPresence:", err)
		return
	}

	conversations, err := cs.db.ListConversationsForUser(userId)
	if err != nil {
		cs.log.Println("ListConversationsForUser:", err)
		return
	}

	status := UserStatus{UserId: userId, IsOnline: online, LastSeen: &now}

	for _, conv := range conversations {
		select {
		case cs.broadcastChan <- &roomBroadcast{
			roomId:     conv.ExternalId,
			event:      &ServerEvent{Event: EventUserStatus, Data: status},
			skipUserId: userId,
		}:
		default:
			cs.log.Printf("broadcast channel full, dropping presence update for %q", conv.ExternalId)
		}
	}

	cs.stats.Incr(statPresenceUpdates)
}

// addClient registers a connection and reports whether it is the
// user's first live session.
func (cs *ChatServer) addClient(c *Client) bool {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	first := cs.userMap[c.user.Id] == nil
	if first {
		cs.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	cs.userMap[c.user.Id][c] = struct{}{}

	cs.stats.Incr(statActiveClients)
	return first
}

// removeClient deregisters a connection and reports whether the user
// has no remaining sessions. Calling it again for the same connection
// has no effect.
func (cs *ChatServer) removeClient(c *Client) bool {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return false
	}
	delete(cs.clients, c)
	cs.stats.Decr(statActiveClients)

	userClients, ok := cs.userMap[c.user.Id]
	if !ok {
		return false
	}
	delete(userClients, c)
	if len(userClients) == 0 {
		delete(cs.userMap, c.user.Id)
		return true
	}

	return false
}

// getClients returns the user's live sessions.
func (cs *ChatServer) getClients(userId int) []*Client {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	clients := make([]*Client, 0, len(cs.userMap[userId]))
	for c := range cs.userMap[userId] {
		clients = append(clients, c)
	}
	return clients
}

// sendToUser unicasts an event to every live session of a user.
func (cs *ChatServer) sendToUser(userId int, ev *ServerEvent) {
	for _, c := range cs.getClients(userId) {
		c.queueEvent(ev)
	}
}

func (cs *ChatServer) addRoom(id string, room *Room) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	cs.rooms[id] = room
	cs.stats.Incr(statActiveRooms)
}

func (cs *ChatServer) getRoom(id string) (*Room, bool) {
	cs.roomsLock.RLock()
	defer cs.roomsLock.RUnlock()

	room, ok := cs.rooms[id]
	return room, ok
}

func (cs *ChatServer) removeRoom(id string) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	if _, ok := cs.rooms[id]; ok {
		delete(cs.rooms, id)
		cs.stats.Decr(statActiveRooms)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	req := stopRequest{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
