package matching

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Configure origin checking in production
		return true
	},
}

// Hub pushes match events to connected clients. Chat and other messaging
// live in their own transport; this hub only carries engine events.
type Hub struct {
	clients    map[int64]*client
	broadcast  chan hubMessage
	register   chan *client
	unregister chan *client
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan hubMessage
	userID int64
}

type hubMessage struct {
	Type   string      `json:"type"`
	UserID int64       `json:"-"`
	Data   interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]*client),
		broadcast:  make(chan hubMessage),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c.userID] = c

		case c := <-h.unregister:
			if _, ok := h.clients[c.userID]; ok {
				delete(h.clients, c.userID)
				close(c.send)
			}

		case message := <-h.broadcast:
			if c, ok := h.clients[message.UserID]; ok {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c.userID)
				}
			}
		}
	}
}

// NotifyMatch implements MatchNotifier. Users without an open connection
// simply miss the event; they see the match on their next list fetch.
func (h *Hub) NotifyMatch(user1ID, user2ID int64, match *Match) {
	message := hubMessage{Type: "new_match", Data: match}

	message.UserID = user1ID
	h.broadcast <- message

	message.UserID = user2ID
	h.broadcast <- message
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan hubMessage, 256),
		userID: userID,
	}

	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
