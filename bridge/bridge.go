// Package bridge connects a session to the remote notification pusher.
//
// The bridge dials the pusher websocket, authenticates, subscribes to a
// fixed topic set, and forwards every topic notification to the client
// through the session's shared writer. It is a one-way tap: the bridge
// never closes the client session, and a pusher failure only stops the
// forwarding, reported to the caller through Run's return value.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/pithecene-io/gantry/catalog"
	"github.com/pithecene-io/gantry/iox"
	"github.com/pithecene-io/gantry/log"
	"github.com/pithecene-io/gantry/metrics"
	"github.com/pithecene-io/gantry/wire"
)

const (
	defaultPingInterval = 60 * time.Second
	authWait            = 15 * time.Second
)

// ErrAuthRejected reports the pusher refusing the bridge's credentials.
var ErrAuthRejected = errors.New("pusher rejected authentication")

// Sink receives pre-encoded frames for delivery to the client. The
// session's shared writer satisfies this.
type Sink interface {
	WriteRaw(buf []byte) error
}

// Options configures a bridge. URL, Token, Sink, Logger and Metrics are
// required.
type Options struct {
	// URL is the pusher websocket endpoint.
	URL string
	// Token is the bare access token; the bridge adds the Bearer prefix.
	Token string
	// Topics to subscribe after authentication.
	Topics []string
	// Sink delivers forwarded frames to the client.
	Sink Sink
	// OnSubscribed is called once per confirmed topic. Optional.
	OnSubscribed func(topic string)
	// Validate re-decodes notification payloads before forwarding,
	// dropping frames that do not parse. Off by default: the bridge
	// normally passes payload bytes through untouched.
	Validate bool

	Logger  *log.Logger
	Metrics *metrics.Collector

	// Dialer overrides the websocket dialer. Nil uses the default.
	Dialer *websocket.Dialer
	// PingInterval overrides the keepalive period. Zero uses the default.
	PingInterval time.Duration
}

// Bridge is one pusher connection bound to one session.
type Bridge struct {
	opts Options
	log  *log.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// New builds a bridge. Call Run to connect and start forwarding.
func New(opts Options) *Bridge {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	return &Bridge{opts: opts, log: opts.Logger}
}

// Run dials the pusher and forwards notifications until the context is
// canceled or the pusher connection fails.
func (b *Bridge) Run(ctx context.Context) error {
	conn, _, err := b.opts.Dialer.DialContext(ctx, b.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial pusher: %w", err)
	}
	b.conn = conn
	defer iox.DiscardClose(conn)

	// The read deadline is refreshed by both data and pong traffic.
	readWait := b.opts.PingInterval + b.opts.PingInterval/2
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	if err := b.authenticate(); err != nil {
		return err
	}
	b.log.Info("pusher authenticated")

	if err := b.subscribe(); err != nil {
		return err
	}

	go b.keepalive(ctx)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("pusher read: %w", err)
		}
		if err := b.handleMessage(data); err != nil {
			return err
		}
	}
}

// authenticate sends the auth request and waits for the pusher's verdict.
func (b *Bridge) authenticate() error {
	oseq := rand.Uint32() | 1
	if err := b.writeMessage(wire.Header{
		Channel: wire.ChannelWebBroker,
		Type:    catalog.MsgBrokerAuthRequest,
		Oseq:    oseq,
	}, catalog.BrokerAuthRequest{AuthToken: "Bearer " + b.opts.Token}); err != nil {
		return fmt.Errorf("pusher auth send: %w", err)
	}

	if err := b.conn.SetReadDeadline(time.Now().Add(authWait)); err != nil {
		return err
	}
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("pusher auth read: %w", err)
	}
	frame, err := wire.Parse(data)
	if err != nil {
		return fmt.Errorf("pusher auth decode: %w", err)
	}
	if frame.Header.Type != catalog.MsgBrokerAuthResponse {
		return fmt.Errorf("pusher sent type %d before auth completed", frame.Header.Type)
	}
	if frame.Header.Code != 200 {
		return fmt.Errorf("%w: status %d", ErrAuthRejected, frame.Header.Code)
	}
	return nil
}

// subscribe requests every configured topic. Confirmations arrive
// asynchronously and are handled by the read loop.
func (b *Bridge) subscribe() error {
	for _, topic := range b.opts.Topics {
		if err := b.writeMessage(wire.Header{
			Channel: wire.ChannelWebBroker,
			Type:    catalog.MsgBrokerSubscribeTopicRequest,
			Oseq:    rand.Uint32() | 1,
		}, catalog.SubscribeTopicRequest{Topic: topic}); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// handleMessage routes one pusher frame.
func (b *Bridge) handleMessage(data []byte) error {
	frame, err := wire.Parse(data)
	if err != nil {
		b.opts.Metrics.IncDecodeError()
		b.log.Warn("pusher frame decode failed", zap.Error(err))
		return nil
	}

	switch frame.Header.Type {
	case catalog.MsgBrokerSubscribeTopicResponse:
		var resp catalog.SubscribeTopicResponse
		if err := msgpack.Unmarshal(frame.Payload, &resp); err != nil {
			b.log.Warn("subscribe confirmation decode failed", zap.Error(err))
			return nil
		}
		b.opts.Metrics.IncBridgeTopicJoined()
		b.log.Info("topic subscribed", zap.String("topic", resp.Topic))
		if b.opts.OnSubscribed != nil {
			b.opts.OnSubscribed(resp.Topic)
		}
	case catalog.MsgBrokerMessageFromTopic:
		if b.opts.Validate {
			var note catalog.MessageFromTopic
			if err := msgpack.Unmarshal(frame.Payload, &note); err != nil {
				b.log.Warn("dropping malformed notification", zap.Error(err))
				return nil
			}
		}
		// Forward the original bytes untouched.
		if err := b.opts.Sink.WriteRaw(data); err != nil {
			return fmt.Errorf("forward notification: %w", err)
		}
		b.opts.Metrics.IncBridgeForward()
	default:
		b.log.Debug("ignoring pusher frame",
			zap.Uint16("channel", frame.Header.Channel),
			zap.Uint16("type", frame.Header.Type),
		)
	}
	return nil
}

// keepalive pings the pusher on a fixed period until the context ends.
func (b *Bridge) keepalive(ctx context.Context) {
	ticker := time.NewTicker(b.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.conn.Close()
			return
		case <-ticker.C:
			b.writeMu.Lock()
			err := b.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			b.writeMu.Unlock()
			if err != nil {
				b.log.Warn("pusher ping failed", zap.Error(err))
				return
			}
		}
	}
}

// writeMessage encodes a frame and sends it as one binary message.
func (b *Bridge) writeMessage(header wire.Header, body any) error {
	buf, err := wire.EncodeMessage(header, body)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteMessage(websocket.BinaryMessage, buf)
}
