package hub

import (
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/websocket"
)

// writeWait bounds a single websocket write before the pump treats the
// connection as dead.
const writeWait = 10 * time.Second

// outboundQueueLen is the per-session buffer between the simulation and the
// socket. A client that cannot drain it loses frames instead of stalling
// the sender.
const outboundQueueLen = 64

// heartbeatSanityWindow rejects client clock stamps claiming to be from the
// future beyond ordinary skew.
const heartbeatSanityWindow = 5 * time.Second

// Session is the server-side half of one connection: the identity minted at
// join, the websocket bound at attach, and the liveness bookkeeping the hub
// sweeps. All outbound frames pass through a buffered queue drained by a
// single pump goroutine, so neither the simulation nor the read loop ever
// blocks on a slow socket.
type Session struct {
	ConnID   string
	EntityID string

	mu            sync.Mutex
	conn          *websocket.Conn
	outbound      chan []byte
	pumpStop      chan struct{}
	lastHeartbeat time.Time
	lastRTT       time.Duration
	lastCmdSeq    uint64
	droppedFrames uint64
}

func newSession(connID, entityID string, now time.Time) *Session {
	return &Session{ConnID: connID, EntityID: entityID, lastHeartbeat: now}
}

// attach binds a websocket to the session, replacing any previous binding.
// onWriteError runs at most once, from the pump goroutine, when a write to
// this particular socket fails.
func (s *Session) attach(conn *websocket.Conn, now time.Time, onWriteError func()) {
	s.mu.Lock()
	s.detachLocked()
	s.conn = conn
	s.outbound = make(chan []byte, outboundQueueLen)
	s.pumpStop = make(chan struct{})
	s.lastHeartbeat = now
	go writePump(conn, s.outbound, s.pumpStop, onWriteError)
	s.mu.Unlock()
}

// writePump is the only goroutine that writes data frames to the socket.
func writePump(conn *websocket.Conn, out <-chan []byte, stop <-chan struct{}, onError func()) {
	defer sentry.Recover()
	for {
		select {
		case <-stop:
			return
		case data := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				select {
				case <-stop:
					// The binding was replaced or torn down while the write
					// was in flight; teardown is someone else's job.
				default:
					if onError != nil {
						onError()
					}
				}
				return
			}
		}
	}
}

// Send queues a frame for the pump. It reports false when the session has
// no live socket or the queue is full; a dropped frame is counted, never
// waited on.
func (s *Session) Send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outbound == nil {
		return false
	}
	select {
	case s.outbound <- data:
		return true
	default:
		s.droppedFrames++
		return false
	}
}

func (s *Session) detachLocked() {
	if s.pumpStop != nil {
		close(s.pumpStop)
		s.pumpStop = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.outbound = nil
}

func (s *Session) detach() {
	s.mu.Lock()
	s.detachLocked()
	s.mu.Unlock()
}

// closeWith sends a close frame with the given status code before tearing
// the socket down. Control frames may be written concurrently with the
// pump's data frames.
func (s *Session) closeWith(code int, reason string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		msg := websocket.FormatCloseMessage(code, reason)
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
	s.detach()
}

// heartbeat records liveness and derives RTT from the client's send stamp.
// Stamps claiming a future clock are ignored rather than trusted.
func (s *Session) heartbeat(receivedAt time.Time, clientSent int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(heartbeatSanityWindow)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			s.lastRTT = rtt
		}
	}
	return s.lastRTT
}

func (s *Session) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

func (s *Session) rtt() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRTT
}

func (s *Session) droppedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedFrames
}

// LastCommandSeq returns the highest command sequence acknowledged on this
// session. The read loop uses it to re-ack duplicates idempotently.
func (s *Session) LastCommandSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCmdSeq
}

// StoreLastCommandSeq records an acknowledged command sequence.
func (s *Session) StoreLastCommandSeq(seq uint64) {
	s.mu.Lock()
	if seq > s.lastCmdSeq {
		s.lastCmdSeq = seq
	}
	s.mu.Unlock()
}
