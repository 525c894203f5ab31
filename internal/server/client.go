package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"convochat/internal/types"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	// envelope overhead on top of the maximum message body
	maxFrameSize = maxContentLength + 512
)

// eventDispatch maps client event names to their handlers. Decoding
// the payload is the handler's job, the read pump only parses the
// envelope.
var eventDispatch = map[string]func(*Client, json.RawMessage){
	EventJoinConversation: (*Client).handleJoinConversation,
	EventSendMessage:      (*Client).handleSendMessage,
	EventTyping:           (*Client).handleTyping,
	EventMarkRead:         (*Client).handleMarkRead,
}

// Client is one authenticated live connection. The user identity is
// fixed at the handshake and never taken from event payloads.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerEvent
	rooms      map[string]*Room
	roomsLock  sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerEvent, 256),
		rooms:      make(map[string]*Room),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeFrame(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueEvent(ErrInvalidEvent())
			continue
		}

		handler, ok := eventDispatch[ev.Event]
		if !ok {
			c.queueEvent(ErrUnknownEvent(ev.Event))
			continue
		}

		handler(c, ev.Data)
	}
}

func (c *Client) handleJoinConversation(data json.RawMessage) {
	var join JoinConversation
	if err := json.Unmarshal(data, &join); err != nil || join.ConversationId == "" {
		c.queueEvent(ErrInvalidEvent())
		return
	}

	select {
	case c.chatServer.joinChan <- &joinRequest{client: c, conversationId: join.ConversationId}:
	default:
		c.log.Println("join channel full")
		c.queueEvent(ErrServiceUnavailable())
	}
}

func (c *Client) handleSendMessage(data json.RawMessage) {
	var send SendMessage
	if err := json.Unmarshal(data, &send); err != nil {
		c.queueEvent(ErrInvalidEvent())
		return
	}

	if send.ConversationId == "" {
		if send.ReceiverId <= 0 {
			c.queueEvent(ErrInvalidEvent())
			return
		}

		select {
		case c.chatServer.directChan <- &directMessage{client: c, receiverId: send.ReceiverId, content: send.Content}:
		default:
			c.log.Println("direct message channel full")
			c.queueEvent(ErrServiceUnavailable())
		}
		return
	}

	c.routeToRoom(send.ConversationId, &roomEvent{client: c, send: &send})
}

func (c *Client) handleTyping(data json.RawMessage) {
	var typing Typing
	if err := json.Unmarshal(data, &typing); err != nil || typing.ConversationId == "" {
		c.queueEvent(ErrInvalidEvent())
		return
	}

	c.routeToRoom(typing.ConversationId, &roomEvent{client: c, typing: &typing})
}

func (c *Client) handleMarkRead(data json.RawMessage) {
	var read MarkRead
	if err := json.Unmarshal(data, &read); err != nil || read.ConversationId == "" {
		c.queueEvent(ErrInvalidEvent())
		return
	}

	c.routeToRoom(read.ConversationId, &roomEvent{client: c, read: &read})
}

// routeToRoom forwards an event to a room this connection has joined.
func (c *Client) routeToRoom(conversationId string, ev *roomEvent) {
	r := c.getRoom(conversationId)
	if r == nil {
		c.queueEvent(ErrNotJoined())
		return
	}

	select {
	case r.eventChan <- ev:
	default:
		c.log.Printf("event channel full for room %q", r.externalId)
		c.queueEvent(ErrServiceUnavailable())
	}
}

func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Println("failed to queue event, send channel is full")
		return false
	}

	return true
}

func (c *Client) writeFrame(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write frame: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	select {
	case c.chatServer.DeregisterChan <- c:
	case <-c.stop:
		// hub is shutting down and no longer receiving
	}
	c.leaveAllRooms()
	c.stopClient()
}

func (c *Client) leaveAllRooms() {
	c.roomsLock.RLock()
	rooms := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.roomsLock.RUnlock()

	for _, room := range rooms {
		select {
		case room.leaveChan <- c:
		default:
			c.log.Printf("leave channel full for room %q", room.externalId)
		}
	}
}

func (c *Client) addRoom(r *Room) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[r.externalId] = r
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, id)
}

func (c *Client) getRoom(id string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	if room, ok := c.rooms[id]; ok {
		return room
	}

	return nil
}
