package server

import (
	"log"
	"strings"
	"sync"
	"time"

	"convochat/internal/database"
)

const (
	// idle rooms unload once no connection has been subscribed for this long
	idleRoomTimeout = 30 * time.Second
	// maximum message body length in bytes, after trimming
	maxContentLength = 2048
)

type exitReq struct {
	done chan string
}

// roomEvent is a client event routed to a room, exactly one of the
// payload fields is set.
type roomEvent struct {
	client *Client
	send   *SendMessage
	typing *Typing
	read   *MarkRead
}

// Room serializes all activity for one conversation in a single
// goroutine, so broadcast order always matches persistence order.
type Room struct {
	id         int
	externalId string
	cs         *ChatServer
	log        *log.Logger

	joinChan  chan *joinRequest
	leaveChan chan *Client
	eventChan chan *roomEvent
	relayChan chan *roomBroadcast

	clients    map[*Client]struct{}
	userMap    map[int]map[*Client]struct{}
	clientLock sync.RWMutex

	// killTimer unloads the room when it is no longer active
	killTimer *time.Timer
	exit      chan exitReq
}

func newRoom(cs *ChatServer, id int, externalId string) *Room {
	return &Room{
		id:         id,
		externalId: externalId,
		cs:         cs,
		log:        cs.log,
		joinChan:   make(chan *joinRequest, 256),
		leaveChan:  make(chan *Client, 256),
		eventChan:  make(chan *roomEvent, 256),
		relayChan:  make(chan *roomBroadcast, 256),
		clients:    make(map[*Client]struct{}),
		userMap:    make(map[int]map[*Client]struct{}),
		exit:       make(chan exitReq),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)
	r.killTimer = time.NewTimer(idleRoomTimeout)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case client := <-r.leaveChan:
			r.handleLeave(client)
		case ev := <-r.eventChan:
			switch {
			case ev.send != nil:
				r.handleSend(ev)
			case ev.typing != nil:
				r.handleTyping(ev)
			case ev.read != nil:
				r.handleRead(ev)
			}
		case bc := <-r.relayChan:
			r.broadcast(bc.event, bc.skipUserId)
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

// handleJoin subscribes a connection after verifying the user is a
// participant of the conversation. A failed membership lookup is not
// an authorization verdict and is reported as an internal error. In
// either failure the caller alone gets an error event, nothing is
// broadcast.
func (r *Room) handleJoin(join *joinRequest) {
	r.killTimer.Stop()

	c := join.client
	ok, err := r.cs.db.IsParticipant(r.id, c.user.Id)
	if err != nil {
		r.log.Println("IsParticipant:", err)
		c.queueEvent(ErrInternalError())

		if r.numClients() == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		}
		return
	}
	if !ok {
		r.log.Printf("user %q is not a participant of %q", c.user.Username, r.externalId)
		c.queueEvent(ErrNotAParticipant())

		if r.numClients() == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		}
		return
	}

	r.addClient(c)
	r.log.Printf("subscribed %q to room %q", c.user.Username, r.externalId)
}

func (r *Room) handleLeave(c *Client) {
	r.removeClient(c)

	if r.numClients() == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// handleSend persists the message, acks the sender, then broadcasts
// the persisted result. A failed write is reported to the sender only
// and nothing is broadcast.
func (r *Room) handleSend(ev *roomEvent) {
	content, errEv := validateContent(ev.send.Content)
	if errEv != nil {
		ev.client.queueEvent(errEv)
		return
	}

	msg, err := r.cs.db.CreateMessage(database.CreateMessageParams{
		ConversationId: r.id,
		SenderId:       ev.client.user.Id,
		Body:           content,
	})
	if err != nil {
		r.log.Println("CreateMessage:", err)
		ev.client.queueEvent(ErrInternalError())
		return
	}

	r.cs.stats.Incr(statMessagesRelayed)

	ev.client.queueEvent(&ServerEvent{
		Event: EventMessageSent,
		Data: MessageSent{
			Id:             msg.Id,
			ConversationId: r.externalId,
			Timestamp:      msg.CreatedAt,
		},
	})

	r.broadcast(&ServerEvent{
		Event: EventMessageNew,
		Data: NewMessage{
			Id:             msg.Id,
			ConversationId: r.externalId,
			SenderId:       ev.client.user.Id,
			SenderUsername: ev.client.user.Username,
			Text:           msg.Body,
			CreatedAt:      msg.CreatedAt,
			Timestamp:      msg.CreatedAt,
		},
	}, 0)
}

// handleTyping relays the indicator to everyone but the typing user.
// Typing state is never persisted.
func (r *Room) handleTyping(ev *roomEvent) {
	r.broadcast(&ServerEvent{
		Event: EventUserTyping,
		Data: UserTyping{
			UserId:         ev.client.user.Id,
			Username:       ev.client.user.Username,
			ConversationId: r.externalId,
			IsTyping:       ev.typing.IsTyping,
		},
	}, ev.client.user.Id)
}

func (r *Room) handleRead(ev *roomEvent) {
	readAt := Now()
	if err := r.cs.db.UpdateLastRead(r.id, ev.client.user.Id, readAt); err != nil {
		r.log.Println("UpdateLastRead:", err)
		ev.client.queueEvent(ErrInternalError())
		return
	}

	r.broadcast(&ServerEvent{
		Event: EventMessageRead,
		Data: MessageRead{
			MessageId:      ev.read.MessageId,
			ConversationId: r.externalId,
			UserId:         ev.client.user.Id,
			Username:       ev.client.user.Username,
			ReadAt:         readAt,
		},
	}, 0)
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.externalId)
	select {
	case r.cs.unloadRoomChan <- unloadRoomRequest{roomId: r.externalId}:
	default:
		// hub is busy, try again on the next tick
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.externalId)

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.externalId)
	}
	r.clientLock.Unlock()

	if e.done != nil {
		e.done <- r.externalId
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	if r.userMap[c.user.Id] == nil {
		r.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	r.userMap[c.user.Id][c] = struct{}{}

	c.addRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.delRoom(r.externalId)

	if userClients, ok := r.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.user.Id)
		}
	}
}

func (r *Room) numClients() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	return len(r.clients)
}

// broadcast delivers the event once per subscribed connection,
// skipping every connection of skipUserId when non-zero.
func (r *Room) broadcast(ev *ServerEvent, skipUserId int) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for c := range r.clients {
		if skipUserId != 0 && c.user.Id == skipUserId {
			continue
		}

		c.queueEvent(ev)
	}
}

// validateContent trims the body and enforces the length bounds,
// returning the error event to send when the content is rejected.
func validateContent(content string) (string, *ServerEvent) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyMessage()
	}
	if len(trimmed) > maxContentLength {
		return "", ErrMessageTooLong()
	}

	return trimmed, nil
}
