package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	messageBufferSize = 16
)

// clientWriter owns all writes to one websocket connection. The broadcaster
// hands it payloads through a bounded channel; a write error ends the
// goroutine and the connection, which the read pump turns into an unregister.
type clientWriter struct {
	id          uuid.UUID
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		id:          uuid.New(),
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// trySend queues msg without blocking. Returns false when the buffer is full,
// i.e. the subscriber is not draining fast enough.
func (cw *clientWriter) trySend(msg []byte) bool {
	select {
	case cw.sendChannel <- msg:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg, ok := <-cw.sendChannel:
			if !ok {
				return
			}
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful writes a close frame with reason before closing. The run
// goroutine must exit first so the close frame is not a concurrent write.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}
