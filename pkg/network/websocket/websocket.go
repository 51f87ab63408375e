package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"

	"github.com/openretro/retroshell/pkg/logger"
)

const (
	maxMessageSize = 10 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	readWait       = 5 * time.Second
	writeWait      = 10 * time.Second
)

// WS is a binary message websocket peer.
type WS struct {
	id   string
	conn deadlinedConn
	send chan []byte
	log  *logger.Logger

	OnMessage MessageHandler

	pingPong bool

	shutdown *sync.WaitGroup
	Done     chan struct{}
}

type MessageHandler func(message []byte, err error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		close(ws.send)
		ws.shutdown.Done()
		ws.close()
		ws.log.Debug().Msgf("%v [ws] close reader", ws.id)
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		if ws.pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(pongTime)); return nil })
		}
	})
	for {
		_, message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.log.Error().Err(err).Msgf("%v [ws] read fail", ws.id)
			}
			break
		}
		ws.OnMessage(message, err)
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (ws *WS) writer() {
	var ticker *time.Ticker
	if ws.pingPong {
		ticker = time.NewTicker(pingTime)
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		ws.shutdown.Done()
		ws.close()
		ws.log.Debug().Msgf("%v [ws] close writer", ws.id)
	}()
	if ws.pingPong {
		for {
			select {
			case message, ok := <-ws.send:
				if !ws.handleMessage(message, ok) {
					return
				}
			case <-ticker.C:
				if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
	for message := range ws.send {
		if !ws.handleMessage(message, true) {
			return
		}
	}
	_ = ws.conn.write(websocket.CloseMessage, []byte{})
}

func (ws *WS) handleMessage(message []byte, ok bool) bool {
	if !ok {
		_ = ws.conn.write(websocket.CloseMessage, []byte{})
		return false
	}
	return ws.conn.write(websocket.BinaryMessage, message) == nil
}

// NewServer initializes a new websocket peer requests handler.
func NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) *WS {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil
	}
	return newSocket(conn, true, log)
}

func NewClient(address url.URL, log *logger.Logger) *WS {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil
	}
	return newSocket(conn, false, log)
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	shut := sync.WaitGroup{}
	shut.Add(2)

	safeConn := deadlinedConn{
		sock: conn,
		wt:   writeWait,
	}

	ws := &WS{
		id:       uuid.Must(uuid.NewV4()).String()[:8],
		conn:     safeConn,
		send:     make(chan []byte),
		log:      log,
		shutdown: &shut,
		Done:     make(chan struct{}, 1),
	}

	go ws.writer()
	go ws.reader()

	return ws
}

func (ws *WS) Write(data []byte) { ws.send <- data }

func (ws *WS) Close() {
	_ = ws.conn.write(websocket.CloseMessage, []byte{})
}

func (ws *WS) close() {
	ws.shutdown.Wait()
	_ = ws.conn.close()
	ws.Done <- struct{}{}
}
