// Package session owns the per-connection state machine.
//
// A session reads frames off one accepted client connection, dispatches
// them through the message catalog, and serializes everything written
// back. The outbound path is a single mutex-guarded writer shared with
// the pusher bridge, so responses and forwarded notifications never
// interleave mid-frame.
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pithecene-io/gantry/catalog"
	"github.com/pithecene-io/gantry/log"
	"github.com/pithecene-io/gantry/metrics"
	"github.com/pithecene-io/gantry/types"
	"github.com/pithecene-io/gantry/wire"
)

const (
	// defaultReadTick bounds how long the read loop blocks on the length
	// prefix before re-checking for cancellation.
	defaultReadTick = 250 * time.Millisecond
	// defaultBodyTimeout bounds how long the rest of a started frame may
	// take to arrive. A peer that sends a prefix and stalls is broken.
	defaultBodyTimeout = 10 * time.Second
)

// Options configures a session. Conn, Catalog, Logger and Metrics are
// required; zero durations fall back to the defaults.
type Options struct {
	Conn        net.Conn
	Catalog     *catalog.Catalog
	Logger      *log.Logger
	Metrics     *metrics.Collector
	User        types.UserInfo
	ReadTick    time.Duration
	BodyTimeout time.Duration
}

// Session is one client connection's lifetime. It implements the state
// surface handlers touch (catalog.Session) and the outbound writer the
// bridge forwards through.
type Session struct {
	id          string
	conn        net.Conn
	catalog     *catalog.Catalog
	log         *log.Logger
	metrics     *metrics.Collector
	readTick    time.Duration
	bodyTimeout time.Duration

	writeMu sync.Mutex

	stateMu      sync.Mutex
	user         types.UserInfo
	achievements types.AchievementList
	haveAchieved bool
	topics       []string

	closeOnce sync.Once
	closeErr  error
}

// New builds a session around an accepted connection.
func New(opts Options) *Session {
	id := uuid.NewString()
	s := &Session{
		id:          id,
		conn:        opts.Conn,
		catalog:     opts.Catalog,
		log:         opts.Logger.ForSession(id, opts.Conn.RemoteAddr().String()),
		metrics:     opts.Metrics,
		user:        opts.User,
		readTick:    opts.ReadTick,
		bodyTimeout: opts.BodyTimeout,
	}
	if s.readTick <= 0 {
		s.readTick = defaultReadTick
	}
	if s.bodyTimeout <= 0 {
		s.bodyTimeout = defaultBodyTimeout
	}
	return s
}

// ID is the session's unique identifier, present on every log line.
func (s *Session) ID() string { return s.id }

// User implements catalog.Session.
func (s *Session) User() types.UserInfo {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.user
}

// CachedAchievements implements catalog.Session.
func (s *Session) CachedAchievements() (types.AchievementList, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.achievements, s.haveAchieved
}

// CacheAchievements implements catalog.Session.
func (s *Session) CacheAchievements(list types.AchievementList) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.achievements = list
	s.haveAchieved = true
}

// AddTopic implements catalog.Session.
func (s *Session) AddTopic(topic string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	for _, t := range s.topics {
		if t == topic {
			return
		}
	}
	s.topics = append(s.topics, topic)
}

// Topics returns the locally confirmed pusher topic subscriptions.
func (s *Session) Topics() []string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return append([]string(nil), s.topics...)
}

// Run drives the read loop until the client disconnects, the context is
// canceled, or a fatal protocol error occurs. The connection is closed
// on return.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()
	s.log.Info("session started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		headerLen, idle, err := s.readPrefix()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Info("client disconnected")
				return nil
			}
			return err
		}
		if idle {
			continue
		}

		frame, err := s.readBody(headerLen)
		if err != nil {
			s.metrics.IncDecodeError()
			s.log.Warn("frame decode failed", zap.Error(err))
			return err
		}
		s.metrics.IncFrameRead()

		resp, err := s.catalog.Dispatch(ctx, s, frame)
		if err != nil {
			if errors.Is(err, catalog.ErrUnauthorized) {
				s.log.Warn("closing unauthorized session")
				return err
			}
			// Recoverable handler failure; frame sync is intact.
			s.log.Warn("message handling failed",
				zap.Uint16("channel", frame.Header.Channel),
				zap.Uint16("type", frame.Header.Type),
				zap.Error(err),
			)
			continue
		}
		if resp != nil {
			if err := s.WriteFrame(resp); err != nil {
				return err
			}
		}
	}
}

// readPrefix blocks on the 2-byte length prefix for up to one read tick.
// A timeout with nothing read is an idle tick, not an error; a timeout
// mid-prefix means the stream is desynchronized and is fatal.
func (s *Session) readPrefix() (headerLen uint16, idle bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.readTick)); err != nil {
		return 0, false, err
	}

	var prefix [2]byte
	n, err := io.ReadFull(s.conn, prefix[:])
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			if n == 0 {
				return 0, true, nil
			}
			s.metrics.IncDecodeError()
			return 0, false, fmt.Errorf("length prefix cut short after %d bytes: %w", n, wire.ErrTruncatedLength)
		}
		if n == 0 && (errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)) {
			return 0, false, io.EOF
		}
		return 0, false, err
	}
	return binary.BigEndian.Uint16(prefix[:]), false, nil
}

// readBody finishes the frame whose prefix was already consumed.
func (s *Session) readBody(headerLen uint16) (*wire.Frame, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.bodyTimeout)); err != nil {
		return nil, err
	}
	return wire.ReadBody(s.conn, headerLen)
}

// WriteFrame encodes and writes one frame through the shared writer.
func (s *Session) WriteFrame(frame *wire.Frame) error {
	buf, err := wire.Encode(frame.Header, frame.Payload)
	if err != nil {
		return err
	}
	return s.WriteRaw(buf)
}

// WriteRaw writes pre-encoded frame bytes. This is the single outbound
// path: dispatch responses and bridge forwards both land here, and the
// mutex keeps concurrent frames whole on the wire.
func (s *Session) WriteRaw(buf []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(buf); err != nil {
		return err
	}
	s.metrics.IncFrameWritten()
	return nil
}

// Close shuts the connection down. Safe to call more than once; later
// calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		s.metrics.IncSessionClosed()
		s.log.Info("session closed")
	})
	return s.closeErr
}
