// Package gateway runs the loopback listener and owns session lifecycles.
//
// The gateway accepts local TCP connections, spins up one session per
// connection, and attaches a pusher bridge to each session when a pusher
// endpoint is configured. Connections from non-loopback peers are
// refused at accept time.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pithecene-io/gantry/bridge"
	"github.com/pithecene-io/gantry/catalog"
	"github.com/pithecene-io/gantry/log"
	"github.com/pithecene-io/gantry/metrics"
	"github.com/pithecene-io/gantry/session"
	"github.com/pithecene-io/gantry/types"
)

// ErrBind reports a failure to claim the listen address. The CLI maps
// this to a distinct exit code so supervisors can tell "port taken"
// from runtime failures.
var ErrBind = errors.New("listen address unavailable")

// PusherOptions configures the per-session notification bridge. An empty
// URL disables the bridge entirely.
type PusherOptions struct {
	URL      string
	Token    string
	Topics   []string
	Validate bool
}

// Options configures a gateway.
type Options struct {
	// Addr is the loopback TCP listen address.
	Addr    string
	Catalog *catalog.Catalog
	Logger  *log.Logger
	Metrics *metrics.Collector
	// User is the configured gateway user, handed to every session.
	User   types.UserInfo
	Pusher PusherOptions

	// ReadTick and BodyTimeout tune every session's read loop. Zero
	// values use the session defaults.
	ReadTick    time.Duration
	BodyTimeout time.Duration
}

// Gateway is the accept loop plus the set of live sessions.
type Gateway struct {
	opts Options
	log  *log.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// New builds a gateway. Call Serve to bind and start accepting.
func New(opts Options) *Gateway {
	return &Gateway{opts: opts, log: opts.Logger}
}

// Serve binds the listen address and accepts until the context is
// canceled. It returns ErrBind (wrapped) when the address cannot be
// claimed, and nil on a clean shutdown.
func (g *Gateway) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.opts.Addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBind, g.opts.Addr, err)
	}
	g.mu.Lock()
	g.ln = ln
	g.mu.Unlock()
	g.log.Info("gateway listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("accept: %w", err)
		}
		if !isLoopback(conn.RemoteAddr()) {
			g.opts.Metrics.IncSessionRejected()
			g.log.Warn("refusing non-loopback peer", zap.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}
		g.opts.Metrics.IncSessionAccepted()
		g.wg.Add(1)
		go g.runSession(ctx, conn)
	}

	g.wg.Wait()
	g.log.Info("gateway stopped")
	return nil
}

// Addr reports the bound listen address, for tests that listen on an
// ephemeral port.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ln == nil {
		return nil
	}
	return g.ln.Addr()
}

// runSession drives one connection to completion, with its bridge (when
// configured) bound to the session's lifetime.
func (g *Gateway) runSession(ctx context.Context, conn net.Conn) {
	defer g.wg.Done()

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := session.New(session.Options{
		Conn:        conn,
		Catalog:     g.opts.Catalog,
		Logger:      g.opts.Logger,
		Metrics:     g.opts.Metrics,
		User:        g.opts.User,
		ReadTick:    g.opts.ReadTick,
		BodyTimeout: g.opts.BodyTimeout,
	})

	if g.opts.Pusher.URL != "" {
		br := bridge.New(bridge.Options{
			URL:          g.opts.Pusher.URL,
			Token:        g.opts.Pusher.Token,
			Topics:       g.opts.Pusher.Topics,
			Validate:     g.opts.Pusher.Validate,
			Sink:         sess,
			OnSubscribed: sess.AddTopic,
			Logger:       g.opts.Logger.ForSession(sess.ID(), conn.RemoteAddr().String()),
			Metrics:      g.opts.Metrics,
		})
		go func() {
			// A dead bridge only stops notifications; the session
			// keeps answering requests.
			if err := br.Run(sessCtx); err != nil && !errors.Is(err, context.Canceled) {
				g.log.Warn("pusher bridge ended", zap.Error(err))
			}
		}()
	}

	if err := sess.Run(sessCtx); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, catalog.ErrUnauthorized) {
		g.log.Warn("session ended with error", zap.Error(err))
	}
}

// isLoopback reports whether the peer address is a loopback IP.
func isLoopback(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
