package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hub fans messages out to connected passenger and driver clients. Every
// user joins a personal room; online drivers additionally join the shared
// drivers room, which is how pending rides reach them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex

	// OnDisconnect fires after a client's last connection goes away.
	// The presence tracker uses it to clear a driver's online flag.
	OnDisconnect func(userID primitive.ObjectID, userType string)
}

type Message struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	UserID    primitive.ObjectID     `json:"user_id"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

const (
	RoomDrivers = "drivers"
)

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true

	h.joinRoom(client, userRoom(client.UserID))
	if client.UserType == "driver" {
		h.joinRoom(client, RoomDrivers)
	}

	log.Printf("websocket client registered: %s (%s)", client.UserID.Hex(), client.UserType)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()

	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}

	delete(h.clients, client)
	close(client.send)

	for roomID, room := range h.rooms {
		if _, exists := room[client]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	// Last connection for this user gone?
	gone := true
	for other := range h.clients {
		if other.UserID == client.UserID {
			gone = false
			break
		}
	}
	h.mutex.Unlock()

	if gone && h.OnDisconnect != nil {
		h.OnDisconnect(client.UserID, client.UserType)
	}
}

func (h *Hub) sendToRoom(roomID string, message Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	data, _ := json.Marshal(message)
	for client := range room {
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop the message rather than block the hub.
		}
	}
}

// SendToUser delivers a message to every connection of one user.
func (h *Hub) SendToUser(userID primitive.ObjectID, message Message) {
	message.Timestamp = time.Now().Unix()
	h.sendToRoom(userRoom(userID), message)
}

// BroadcastToDrivers delivers a message to every connected driver. Used to
// surface new pending rides.
func (h *Hub) BroadcastToDrivers(message Message) {
	message.Timestamp = time.Now().Unix()
	h.sendToRoom(RoomDrivers, message)
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func userRoom(userID primitive.ObjectID) string {
	return "user_" + userID.Hex()
}
