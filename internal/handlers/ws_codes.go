// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Application close codes sent when the server ends a socket.
const (
	SlowConsumerError   websocket.StatusCode = 4000 // Outbound queue overflowed; client should reconnect and rejoin.
	ServerShutdownError websocket.StatusCode = 4001 // Server is going away.
)
