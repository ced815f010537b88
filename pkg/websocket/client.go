package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(id, name string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		Name: name,
		Conn: conn,
		Send: make(chan []byte, 16),
	}
}
