package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/dtos"
	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/domains/interfaces"
	"github.com/chess-vn/courtsync/pkg/logging"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Match is the single owner of one match's state. Every read and write of
// the state happens on the goroutine running start, one message at a time.
type Match struct {
	id      string
	state   entities.MatchState
	conns   map[string]*connection
	clock   clockwork.Clock
	usecase interfaces.IMatchStateUsecase

	inbox     chan matchMsg
	persistCh chan entities.MatchState
	persisted chan struct{}

	onPersistFailure func(error)

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type matchMsg interface{ isMatchMsg() }

type join struct{ conn *connection }

type leave struct{ connId string }

type fromClient struct {
	connId string
	req    dtos.ActionRequest
}

type protocolError struct {
	connId  string
	message string
}

type getView struct{ reply chan matchView }

func (join) isMatchMsg()          {}
func (leave) isMatchMsg()         {}
func (fromClient) isMatchMsg()    {}
func (protocolError) isMatchMsg() {}
func (getView) isMatchMsg()       {}

type matchView struct {
	State          entities.MatchState
	NumConnections int
}

func newMatch(
	id string,
	state entities.MatchState,
	usecase interfaces.IMatchStateUsecase,
	clock clockwork.Clock,
	queueSize int,
	onPersistFailure func(error),
) *Match {
	if queueSize < 1 {
		queueSize = 1
	}
	m := &Match{
		id:               id,
		state:            state,
		conns:            make(map[string]*connection),
		clock:            clock,
		usecase:          usecase,
		inbox:            make(chan matchMsg, 64),
		persistCh:        make(chan entities.MatchState, queueSize),
		persisted:        make(chan struct{}),
		onPersistFailure: onPersistFailure,
		stopCh:           make(chan struct{}),
		done:             make(chan struct{}),
	}
	go m.persist()
	go m.start()
	return m
}

func (m *Match) start() {
	for {
		select {
		case <-m.stopCh:
			m.shutdown()
			return
		case msg := <-m.inbox:
			m.handle(msg)
		}
	}
}

func (m *Match) handle(msg matchMsg) {
	switch msg := msg.(type) {
	case join:
		m.conns[msg.conn.id] = msg.conn
		now := m.clock.Now()
		settle(&m.state, now)
		m.unicast(msg.conn.id, m.snapshotFrame(now, ""))
		logging.Info("connection joined",
			zap.String("match_id", m.id),
			zap.String("connection_id", msg.conn.id),
			zap.Int("connections", len(m.conns)),
		)
	case leave:
		if m.removeConn(msg.connId) {
			logging.Info("connection left",
				zap.String("match_id", m.id),
				zap.String("connection_id", msg.connId),
				zap.Int("connections", len(m.conns)),
			)
		}
	case fromClient:
		m.dispatch(msg.connId, msg.req)
	case protocolError:
		logging.Info("malformed message",
			zap.String("match_id", m.id),
			zap.String("connection_id", msg.connId),
			zap.String("error", msg.message),
		)
		m.unicast(msg.connId, m.errorFrame(msg.message))
	case getView:
		msg.reply <- matchView{
			State:          m.state.Clone(),
			NumConnections: len(m.conns),
		}
	}
}

// dispatch applies one client action. Queries reply to the requester only;
// every accepted mutation is queued for persistence and then broadcast.
func (m *Match) dispatch(connId string, req dtos.ActionRequest) {
	a, err := decodeAction(req)
	if err != nil {
		m.reject(connId, req.Type, err)
		return
	}

	now := m.clock.Now()
	settle(&m.state, now)

	if q, ok := a.(getGameState); ok {
		m.unicast(connId, m.snapshotFrame(now, q.requestId))
		return
	}

	if err := reduce(&m.state, a, now); err != nil {
		m.reject(connId, req.Type, err)
		return
	}
	logging.Debug("action applied",
		zap.String("match_id", m.id),
		zap.String("connection_id", connId),
		zap.String("action", req.Type),
	)

	m.enqueueSave()
	m.broadcast(m.snapshotFrame(now, ""))
}

func (m *Match) reject(connId, kind string, err error) {
	var verr validationError
	if errors.As(err, &verr) {
		logging.Info("action rejected",
			zap.String("match_id", m.id),
			zap.String("connection_id", connId),
			zap.String("action", kind),
			zap.String("status", verr.status),
		)
		m.unicast(connId, m.errorFrame(verr.status))
		return
	}
	logging.Warn("ignoring action",
		zap.String("match_id", m.id),
		zap.String("connection_id", connId),
		zap.String("action", kind),
		zap.Error(err),
	)
}

func (m *Match) snapshotFrame(now time.Time, requestId string) []byte {
	ms := now.UnixMilli()
	state := m.state
	state.ServerTime = ms
	return m.marshal(dtos.GameStateResponse{
		Type:      dtos.FrameTypeGameState,
		Data:      state,
		Timestamp: ms,
		RequestId: requestId,
	})
}

func (m *Match) errorFrame(message string) []byte {
	return m.marshal(dtos.ErrorResponse{
		Type:      dtos.FrameTypeError,
		Data:      dtos.ErrorData{Error: message},
		Timestamp: m.clock.Now().UnixMilli(),
	})
}

func (m *Match) marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error("failed to marshal frame", zap.String("match_id", m.id), zap.Error(err))
		return nil
	}
	return data
}

// broadcast never blocks: a connection whose buffer is full is dropped.
func (m *Match) broadcast(frame []byte) {
	if frame == nil {
		return
	}
	for id := range m.conns {
		m.unicast(id, frame)
	}
}

func (m *Match) unicast(connId string, frame []byte) {
	conn, ok := m.conns[connId]
	if !ok || frame == nil {
		return
	}
	select {
	case conn.send <- frame:
	default:
		logging.Warn("connection send buffer full, dropping connection",
			zap.String("match_id", m.id),
			zap.String("connection_id", connId),
		)
		m.removeConn(connId)
	}
}

func (m *Match) removeConn(connId string) bool {
	conn, ok := m.conns[connId]
	if !ok {
		return false
	}
	delete(m.conns, connId)
	close(conn.send)
	return true
}

func (m *Match) enqueueSave() {
	select {
	case m.persistCh <- m.state.Clone():
	default:
		logging.Warn("persistence queue full, skipping save", zap.String("match_id", m.id))
	}
}

// persist writes snapshots in the order they were queued, so the last
// completed write always carries the freshest state.
func (m *Match) persist() {
	defer close(m.persisted)
	for state := range m.persistCh {
		err := m.usecase.SaveWithRetry(context.Background(), m.id, state)
		if err == nil {
			continue
		}
		logging.Error("failed to persist match state",
			zap.String("match_id", m.id),
			zap.Error(err),
		)
		if m.onPersistFailure != nil {
			m.onPersistFailure(err)
		}
	}
}

func (m *Match) shutdown() {
	for id := range m.conns {
		m.removeConn(id)
	}
	close(m.persistCh)
	<-m.persisted
	close(m.done)
	logging.Info("match stopped", zap.String("match_id", m.id))
}

func (m *Match) send(msg matchMsg) bool {
	select {
	case <-m.stopCh:
		return false
	default:
	}
	select {
	case m.inbox <- msg:
		return true
	case <-m.stopCh:
		return false
	}
}

func (m *Match) join(conn *connection) bool {
	return m.send(join{conn: conn})
}

func (m *Match) leave(connId string) {
	m.send(leave{connId: connId})
}

func (m *Match) fromClient(connId string, req dtos.ActionRequest) {
	m.send(fromClient{connId: connId, req: req})
}

func (m *Match) protocolError(connId, message string) {
	m.send(protocolError{connId: connId, message: message})
}

func (m *Match) view() (matchView, bool) {
	reply := make(chan matchView, 1)
	if !m.send(getView{reply: reply}) {
		return matchView{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-m.done:
		return matchView{}, false
	}
}

// stop closes every connection and returns once queued writes are flushed.
func (m *Match) stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}
