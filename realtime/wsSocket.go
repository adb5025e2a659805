package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsSocket adapts a gorilla connection to Socket. gorilla allows one
// concurrent writer, so every write goes through writeMu.
type wsSocket struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func newWSSocket(conn *websocket.Conn, writeTimeout time.Duration) *wsSocket {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &wsSocket{conn: conn, writeTimeout: writeTimeout}
}

func (s *wsSocket) Send(msg any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (s *wsSocket) Close(code int, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(s.writeTimeout))
	closeErr := s.conn.Close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return closeErr
}
