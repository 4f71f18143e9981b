package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-upf/upf/logger"
	utils "github.com/go-upf/upf/pkg"
	"github.com/go-upf/upf/pkg/routine"
	"github.com/gorilla/websocket"
)

const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
	CloseMessage  = websocket.CloseMessage
	PingMessage   = websocket.PingMessage
	PongMessage   = websocket.PongMessage
)

type Msg struct {
	Type    int
	Payload []byte
}

// Upgrader turns plain HTTP requests into managed sessions with read and
// write pumps, ping keepalive, and bounded buffers.
type Upgrader struct {
	ug     *websocket.Upgrader
	opt    *SessionOption
	logger logger.Logger
}

func NewUpgrader(opts ...Option) *Upgrader {
	u := &Upgrader{
		opt: &SessionOption{
			in:         1024,
			out:        1024,
			rBuffer:    0,
			wBuffer:    4096,
			hbInterval: 10 * time.Second,
			wTime:      10 * time.Second,
			hsTime:     3 * time.Second,
			closeWait:  500 * time.Millisecond,
			rLimit:     51200,
		},
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.ug = &websocket.Upgrader{
		HandshakeTimeout: u.opt.hsTime,
		ReadBufferSize:   u.opt.rBuffer,
		WriteBufferSize:  u.opt.wBuffer,
		CheckOrigin: func(r *http.Request) bool {
			return r.Method == http.MethodGet
		},
		EnableCompression: false,
	}
	return u
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Session, error) {
	conn, err := u.ug.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	sess := &Session{}
	sess.set(conn, u)
	routine.GoSafe(context.TODO(), func() {
		sess.read()
	})
	routine.GoSafe(context.TODO(), func() {
		sess.write()
	})
	return sess, nil
}

type SessionOption struct {
	in         int
	out        int
	rBuffer    int
	wBuffer    int
	rLimit     int64
	hbInterval time.Duration
	wTime      time.Duration
	hsTime     time.Duration
	closeWait  time.Duration
}

type Session struct {
	id     string
	conn   *websocket.Conn
	in     chan *Msg
	out    chan *Msg
	closed atomic.Bool
	logger logger.Logger
	l      sync.Mutex
	opt    *SessionOption
	hbTime int64
	outErr chan error
	inErr  chan error
}

func (s *Session) set(conn *websocket.Conn, u *Upgrader) {
	s.id = utils.BuildRequestID()
	s.conn = conn
	s.in = make(chan *Msg, u.opt.in)
	s.out = make(chan *Msg, u.opt.out)
	s.closed.Store(false)
	s.logger = u.logger
	s.opt = u.opt
	s.hbTime = time.Now().Unix()
	s.inErr = make(chan error, 1)
	s.outErr = make(chan error, 1)
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) pingHandler() error {
	if s.closed.Load() {
		return nil
	}
	s.l.Lock()
	defer s.l.Unlock()
	err := s.conn.SetWriteDeadline(time.Now().Add(s.opt.wTime))
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PongMessage, nil)
}

func (s *Session) setHandler() {
	// SetXXHandler work base on ReadMessage()
	s.conn.SetPongHandler(func(msg string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opt.hbInterval))
		atomic.StoreInt64(&s.hbTime, time.Now().Unix())
		return nil
	})
	s.conn.SetPingHandler(func(msg string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opt.hbInterval))
		atomic.StoreInt64(&s.hbTime, time.Now().Unix())
		return s.pingHandler()
	})
	s.conn.SetCloseHandler(func(code int, text string) error {
		return nil
	})
}

func (s *Session) read() {
	defer s.Close()
	s.setHandler()
	s.conn.SetReadLimit(s.opt.rLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opt.hbInterval))
	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.inErr <- nil
			} else {
				s.inErr <- err
			}
			return
		}
		if s.closed.Load() {
			return
		}
		m := &Msg{
			Type:    msgType,
			Payload: payload,
		}
		s.in <- m
		atomic.StoreInt64(&s.hbTime, time.Now().Unix())
	}
}

func (s *Session) write() {
	tk := time.NewTicker(s.opt.hbInterval * 4 / 5)
	defer func() {
		tk.Stop()
		s.Close()
	}()

	var (
		payload []byte
		msgType int
	)
	for {
		if s.closed.Load() {
			return
		}
		select {
		case m := <-s.out:
			msgType = m.Type
			payload = m.Payload
		case <-tk.C:
			msgType = websocket.PingMessage
			payload = nil
		}
		s.l.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.opt.wTime))
		err := s.conn.WriteMessage(msgType, payload)
		s.l.Unlock()
		if err != nil {
			s.outErr <- err
			return
		}
	}
}

func (s *Session) Receive() (*Msg, error) {
	select {
	case m := <-s.in:
		return m, nil
	case err := <-s.inErr:
		return nil, err
	}
}

func (s *Session) Send(m *Msg) error {
	var err error
	select {
	case s.out <- m:
	case err = <-s.outErr:
	default:
		// queue full: drop the oldest queued message, keep the newest
		select {
		case <-s.out:
		default:
		}
		select {
		case s.out <- m:
		default:
		}
	}
	return err
}

func (s *Session) Close() {
	if s.closed.Load() {
		return
	}
	s.closed.Store(true)
	time.Sleep(s.opt.closeWait)
	s.l.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
	s.l.Unlock()
	_ = s.conn.Close()
}
