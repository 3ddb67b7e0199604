package main

import (
	"time"

	"github.com/gorilla/websocket"
)

// pingInterval is how long a connection may sit idle before the pump
// emits a keepalive message.
const pingInterval = 30 * time.Second

// writePump drains a client send queue onto its connection, injecting a
// ping whenever the link has been quiet for a full interval. Returns when
// the queue closes or a write fails.
func writePump(conn *websocket.Conn, send <-chan []byte) error {
	idle := time.NewTimer(pingInterval)
	defer idle.Stop()
	ping := mustMarshal(wsMessage{Type: "ping"})

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
		case <-idle.C:
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return err
			}
		}
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(pingInterval)
	}
}
