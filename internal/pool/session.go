package pool

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bardlex/gomc/internal/mining"
	"github.com/bardlex/gomc/pkg/errors"
	"github.com/bardlex/gomc/pkg/log"
)

const defaultKeepaliveInterval = 30 * time.Second

// State tracks the session lifecycle
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateLoggedIn
	StateSubscribed
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateLoggedIn:
		return "logged_in"
	case StateSubscribed:
		return "subscribed"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Config holds pool session configuration
type Config struct {
	URL               string
	User              string
	Pass              string
	WorkerID          string
	Agent             string
	KeepaliveInterval time.Duration
}

// JobSink receives decoded jobs from the pool
type JobSink interface {
	UpdateJob(job mining.Job)
}

// ResultSink receives share acceptance outcomes
type ResultSink interface {
	ShareAccepted()
	ShareRejected()
}

// Session is a client connection to a mining pool. Writes to the socket are
// serialized through a mutex; reads happen on a single pump goroutine owned
// by Run.
type Session struct {
	cfg     Config
	jobs    JobSink
	results ResultSink
	logger  *log.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex
	state   atomic.Int32
}

// NewSession creates a pool session that delivers jobs to the given sink
func NewSession(cfg Config, jobs JobSink, logger *log.Logger) (*Session, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "new_session", "pool URL is required")
	}
	if cfg.User == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "new_session", "pool user is required")
	}
	if jobs == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "new_session", "job sink is required")
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = defaultKeepaliveInterval
	}
	return &Session{
		cfg:    cfg,
		jobs:   jobs,
		logger: logger.WithComponent("pool"),
	}, nil
}

// SetResultSink registers an optional receiver for share outcomes
func (s *Session) SetResultSink(results ResultSink) {
	s.results = results
}

// State returns the current session state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	old := State(s.state.Swap(int32(state)))
	if old != state {
		s.logger.Debug("session state change",
			"from", old.String(),
			"to", state.String(),
		)
	}
}

// Connect dials the pool. An unexpected URL scheme is logged but not
// rejected; dial failures are connection errors.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnecting)

	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		s.setState(StateDisconnected)
		return errors.Wrap(err, errors.ErrorTypeConfig, "connect", "invalid pool URL").
			WithContext("url", s.cfg.URL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		s.logger.Warn("unexpected pool URL scheme", "scheme", u.Scheme, "url", s.cfg.URL)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		s.setState(StateDisconnected)
		return errors.Wrap(err, errors.ErrorTypeConnection, "connect", "failed to dial pool").
			WithContext("url", s.cfg.URL)
	}

	s.conn = conn
	s.setState(StateConnected)
	s.logger.LogConnection("connected", u.Host)
	return nil
}

// Run drives the session: handshake, then the active loop multiplexing
// inbound frames, keepalives, and outbound shares. It returns nil on a clean
// close or context cancellation, and an error on any terminal failure.
func (s *Session) Run(ctx context.Context, shares <-chan mining.Share) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer s.close()

	if err := s.send(EncodeLogin(s.cfg.User, s.cfg.Pass, s.cfg.Agent)); err != nil {
		return err
	}
	s.setState(StateLoggedIn)

	if err := s.send(EncodeSubscribe(s.cfg.WorkerID)); err != nil {
		return err
	}
	s.setState(StateSubscribed)
	s.setState(StateActive)

	inbound := make(chan []byte, 16)
	readErr := make(chan error, 1)
	pumpDone := make(chan struct{})
	defer close(pumpDone)
	go s.readPump(inbound, readErr, pumpDone)

	keepalive := time.NewTicker(s.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("pool session shutting down")
			return nil

		case data, ok := <-inbound:
			if !ok {
				// Pump exited; queued frames were all delivered first.
				err := <-readErr
				if isCleanClose(err) {
					s.logger.LogConnection("closed", s.cfg.URL)
					return nil
				}
				return errors.Wrap(err, errors.ErrorTypeConnection, "read_pump",
					"pool connection lost")
			}
			if err := s.handleMessage(data); err != nil {
				return err
			}

		case <-keepalive.C:
			if err := s.send(EncodeKeepalive()); err != nil {
				return err
			}

		case share, ok := <-shares:
			if !ok {
				shares = nil
				continue
			}
			if err := s.Submit(share); err != nil {
				return err
			}
		}
	}
}

// Submit sends a share to the pool
func (s *Session) Submit(share mining.Share) error {
	if err := s.send(EncodeSubmit(s.cfg.WorkerID, share)); err != nil {
		return err
	}
	s.logger.LogShareSubmitted(share.JobID, share.Nonce)
	return nil
}

// readPump forwards frames from the socket until it fails or closes, then
// closes inbound so the consumer drains remaining frames before seeing the
// error.
func (s *Session) readPump(inbound chan<- []byte, readErr chan<- error, done <-chan struct{}) {
	defer close(inbound)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case inbound <- data:
		case <-done:
			return
		}
	}
}

// handleMessage dispatches one inbound frame. A malformed frame aborts only
// its own handling: the error is logged and the session keeps running. Only
// handshake rejections surface as errors here.
func (s *Session) handleMessage(data []byte) error {
	s.logger.LogPoolMessage("recv", string(data))

	msg, err := ParseMessage(data)
	if err != nil {
		s.logger.WithError(err).Warn("discarding unparsable pool frame")
		return nil
	}

	if msg.IsResponse() {
		return s.handleResponse(msg)
	}

	switch msg.Method {
	case "job":
		job, err := DecodeJob(msg.Params)
		if err != nil {
			s.logger.WithError(err).Warn("discarding malformed job")
			return nil
		}
		s.logger.LogJobReceived(job.ID, job.Algorithm.String(), len(job.Blob))
		s.jobs.UpdateJob(job)
		return nil
	case "":
		s.logger.Debug("ignoring message without method")
		return nil
	default:
		s.logger.Warn("ignoring unknown pool method", "method", msg.Method)
		return nil
	}
}

func (s *Session) handleResponse(msg *Message) error {
	switch *msg.ID {
	case loginRequestID:
		if msg.Error != nil {
			return errors.New(errors.ErrorTypeProtocol, "login",
				"pool rejected login").WithContext("pool_error", msg.Error.Message)
		}
	case subscribeRequestID:
		if msg.Error != nil {
			return errors.New(errors.ErrorTypeProtocol, "subscribe",
				"pool rejected subscription").WithContext("pool_error", msg.Error.Message)
		}
	case submitRequestID:
		if msg.Error != nil {
			s.logger.Warn("share rejected", "code", msg.Error.Code, "reason", msg.Error.Message)
			if s.results != nil {
				s.results.ShareRejected()
			}
		} else if s.results != nil {
			s.results.ShareAccepted()
		}
	default:
		s.logger.Debug("response for unknown request", "id", *msg.ID)
	}
	return nil
}

// send marshals and writes a single frame under the write lock
func (s *Session) send(req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "send", "failed to marshal request")
	}

	s.writeMu.Lock()
	err = s.conn.WriteMessage(websocket.TextMessage, payload)
	s.writeMu.Unlock()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "send",
			"failed to write to pool").WithContext("method", req.Method)
	}

	s.logger.LogPoolMessage("send", string(payload))
	return nil
}

func (s *Session) close() {
	if s.conn == nil {
		return
	}
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	_ = s.conn.Close()
	s.setState(StateDisconnected)
}

func isCleanClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
