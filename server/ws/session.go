package ws

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kevinms/leakybucket-go"
	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/auth"
	"github.com/velotype/velotype/server/match"
	"github.com/velotype/velotype/server/wire"
)

const (
	// writeWait bounds a single frame or control write.
	writeWait = 10 * time.Second
	// pongWait is how long a socket may stay silent before it is presumed
	// dead; control pongs reset it.
	pongWait = 60 * time.Second
	// pingPeriod spaces control pings. Must stay under pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds one inbound frame.
	maxMessageSize = 32 * 1024

	readBufferSize  = 4096
	writeBufferSize = 4096

	// sendBufferSize is the per-session outbound frame buffer. A consumer
	// this far behind is dropped rather than allowed to stall a room.
	sendBufferSize = 64
)

// session is one client connection. It implements the room's Client contract
// and the matchmaker's Conn contract: frames from either land on the send
// channel and the write pump owns the socket writes.
//
// The fields below the limiter are touched only by the read goroutine; the
// identity is always set before the session is handed to a room or the
// queue, so their reads of it are ordered by that handoff.
type session struct {
	svc  *Service
	conn *websocket.Conn

	send      chan []byte
	closing   chan closeRequest
	done      chan struct{}
	closeOnce sync.Once
	limiter   *leakybucket.LeakyBucket

	identity *auth.Identity
	room     *match.Room
	queued   bool
	rtt      rttEstimator
}

type closeRequest struct {
	code   int
	reason string
}

func newSession(svc *Service, conn *websocket.Conn) *session {
	c := params.VeloTypeConfig()
	return &session{
		svc:     svc,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		closing: make(chan closeRequest, 1),
		done:    make(chan struct{}),
		limiter: leakybucket.NewLeakyBucket(float64(c.RateLimitPerSecond), int64(c.RateLimitCapacity)),
	}
}

// UserID implements the room and queue client contracts.
func (s *session) UserID() string {
	return s.identity.ID
}

// Username implements the room and queue client contracts.
func (s *session) Username() string {
	return s.identity.Username
}

// Send queues one frame for the write pump. It never blocks; a session whose
// buffer is full is dropped.
func (s *session) Send(msgType string, payload interface{}) {
	env := &wire.Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.WithError(err).WithField("frame", msgType).Error("Could not encode frame")
			return
		}
		env.Data = data
	}
	buf, err := json.Marshal(env)
	if err != nil {
		log.WithError(err).WithField("frame", msgType).Error("Could not encode frame")
		return
	}
	select {
	case s.send <- buf:
	case <-s.done:
	default:
		log.WithField("frame", msgType).Warn("Send buffer full, dropping session")
		s.close(wire.CloseInternal, "send buffer overflow")
	}
}

// CloseWithCode implements the room client contract: deliberate closes carry
// a close frame with the given code.
func (s *session) CloseWithCode(code int, reason string) {
	s.shutdown(code, reason)
}

// shutdown hands the close to the write pump so frames queued just before it,
// an error frame usually, still reach the client ahead of the close frame.
func (s *session) shutdown(code int, reason string) {
	select {
	case s.closing <- closeRequest{code: code, reason: reason}:
	case <-s.done:
	default:
	}
}

// close tears the socket down once. A zero code skips the close frame.
func (s *session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		if code != 0 {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		}
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case buf := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				s.close(0, "")
				return
			}
		case req := <-s.closing:
			s.flush()
			s.close(req.code, req.reason)
			return
		case <-ticker.C:
			payload := strconv.AppendInt(nil, time.Now().UnixNano(), 10)
			if err := s.conn.WriteControl(websocket.PingMessage, payload, time.Now().Add(writeWait)); err != nil {
				s.close(0, "")
				return
			}
		case <-s.done:
			return
		}
	}
}

// flush drains frames that were queued before a deliberate close.
func (s *session) flush() {
	for {
		select {
		case buf := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.TextMessage, buf)
		default:
			return
		}
	}
}

func (s *session) readPump() {
	defer s.teardown()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(s.handlePong)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		framesReceivedTotal.Inc()
		if s.limiter.Add(1) == 0 {
			framesRateLimitedTotal.Inc()
			s.sendError("rate limited")
			continue
		}
		s.handleFrame(data)
	}
}

// handlePong extends the read deadline and feeds the round-trip estimator
// from the timestamp the ping carried.
func (s *session) handlePong(appData string) error {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	sentAt, err := strconv.ParseInt(appData, 10, 64)
	if err != nil || sentAt <= 0 {
		return nil
	}
	if sample := time.Since(time.Unix(0, sentAt)); sample >= 0 {
		s.rtt.addSample(sample)
		rttSeconds.Observe(sample.Seconds())
	}
	return nil
}

// teardown runs once when the read pump exits: the queue entry and room
// binding are released, both guarded against this socket having been
// superseded by a fresher one.
func (s *session) teardown() {
	s.close(0, "")
	s.svc.unregister(s)
	if s.identity == nil {
		return
	}
	if s.queued {
		s.svc.cfg.Matchmaking.Dequeue(s.identity.ID, s)
	}
	if s.room != nil {
		s.room.Disconnect(s)
	}
	log.WithFields(logrus.Fields{
		"userId": s.identity.ID,
		"rtt":    s.rtt.rtt(),
	}).Debug("Session closed")
}

func (s *session) handleFrame(raw []byte) {
	env := &wire.Envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		s.sendError("invalid payload")
		return
	}
	if env.Type == wire.MsgJoin {
		s.handleJoin(env.Data)
		return
	}
	// Join is the only frame accepted before its ack.
	if s.identity == nil {
		s.sendError("invalid payload")
		return
	}
	switch env.Type {
	case wire.MsgPing:
		p := &wire.Ping{}
		if len(env.Data) > 0 && json.Unmarshal(env.Data, p) != nil {
			s.sendError("invalid payload")
			return
		}
		s.Send(wire.MsgPong, &wire.Pong{ClientTs: p.ClientTs, ServerTs: time.Now().UnixMilli()})
	case wire.MsgLeave:
		if !s.queued {
			s.sendError("invalid payload")
			return
		}
		s.svc.cfg.Matchmaking.Dequeue(s.identity.ID, s)
		s.queued = false
	case wire.MsgProgress:
		p := &wire.Progress{}
		if s.room == nil || json.Unmarshal(env.Data, p) != nil {
			s.sendError("invalid payload")
			return
		}
		s.room.Progress(s.identity.ID, p)
	case wire.MsgResult:
		res := &wire.Result{}
		if s.room == nil || json.Unmarshal(env.Data, res) != nil {
			s.sendError("invalid payload")
			return
		}
		s.room.Submit(s.identity.ID, res)
	case wire.MsgForfeit:
		if s.room == nil {
			s.sendError("invalid payload")
			return
		}
		s.room.Forfeit(s.identity.ID)
	case wire.MsgDrawVote:
		v := &wire.DrawVote{}
		if s.room == nil || json.Unmarshal(env.Data, v) != nil ||
			(v.Vote != wire.VoteDraw && v.Vote != wire.VoteContinue) {
			s.sendError("invalid payload")
			return
		}
		s.room.Vote(s.identity.ID, v.Vote)
	default:
		s.sendError("invalid payload")
	}
}

// handleJoin authenticates the session and routes it: an empty matchId
// enters the matchmaking queue, a concrete one binds to that room. A second
// join on the same socket may re-bind or re-queue the same user but never
// switch the socket to another principal.
func (s *session) handleJoin(data json.RawMessage) {
	j := &wire.Join{}
	if err := json.Unmarshal(data, j); err != nil {
		s.sendError("invalid payload")
		return
	}
	ident, err := s.svc.cfg.Auth.Verify(j.Token)
	if err != nil {
		s.sendError("unauthorized")
		s.shutdown(wire.ClosePolicy, "unauthorized")
		return
	}
	if s.identity != nil && s.identity.ID != ident.ID {
		s.sendError("invalid payload")
		return
	}
	s.identity = ident

	if j.MatchID == "" {
		s.svc.cfg.Matchmaking.Enqueue(s.svc.ctx, s)
		s.queued = true
		return
	}
	room, err := s.svc.cfg.Match.Join(j.MatchID, s)
	if err != nil {
		s.sendError("not in match")
		return
	}
	if s.queued {
		s.svc.cfg.Matchmaking.Dequeue(ident.ID, s)
		s.queued = false
	}
	if s.room != nil && s.room != room {
		s.room.Disconnect(s)
	}
	s.room = room
}

func (s *session) sendError(message string) {
	s.Send(wire.MsgError, &wire.ErrorMessage{Message: message})
}
