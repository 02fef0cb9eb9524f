// Package catalog holds the closed message catalog and its dispatcher.
//
// The catalog is a static mapping from a (channel, type) key to a handler.
// It is built once at process start and injected into every connection
// session; there is no ambient global dispatch table. Unknown keys are not
// errors: the protocol defines no "unsupported operation" reply, so the
// dispatcher logs the miss and drops the message with the session left open.
package catalog

import (
	"context"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/pithecene-io/gantry/backend"
	"github.com/pithecene-io/gantry/log"
	"github.com/pithecene-io/gantry/metrics"
	"github.com/pithecene-io/gantry/types"
	"github.com/pithecene-io/gantry/wire"
)

// ErrUnauthorized marks a backend refusal that must end the session
// (the user does not own the requesting client). The session treats it
// as fatal; every other handler error is recovered locally.
var ErrUnauthorized = errors.New("client unauthorized")

// Status extension values placed on response headers.
const (
	codeAlreadyUnlocked = 208
	codeInternal        = 500
)

// Session is the per-connection state a handler may touch. Implemented by
// the session package; kept narrow so handlers stay testable in isolation.
type Session interface {
	// User is the authenticated gateway user.
	User() types.UserInfo
	// CachedAchievements returns the last fetched achievement list.
	CachedAchievements() (types.AchievementList, bool)
	// CacheAchievements replaces the cached achievement list wholesale.
	CacheAchievements(types.AchievementList)
	// AddTopic records a locally confirmed pusher topic subscription.
	AddTopic(topic string)
}

// Handler processes one decoded request frame and returns the response
// frame, or nil when the operation produces no reply.
type Handler func(ctx context.Context, sess Session, frame *wire.Frame) (*wire.Frame, error)

// Key is the (channel, type) dispatch key.
type Key struct {
	Channel uint16
	Type    uint16
}

// Catalog is the immutable dispatch table plus the collaborators shared
// by all handlers.
type Catalog struct {
	handlers map[Key]Handler
	backend  backend.Client
	log      *log.Logger
	metrics  *metrics.Collector
}

// New builds the full message catalog bound to a backend client.
func New(b backend.Client, logger *log.Logger, collector *metrics.Collector) *Catalog {
	c := &Catalog{
		backend: b,
		log:     logger,
		metrics: collector,
	}
	c.handlers = map[Key]Handler{
		{wire.ChannelComm, MsgAuthInfoRequest}:                        c.handleAuthInfo,
		{wire.ChannelComm, MsgGetUserStatsRequest}:                    c.handleGetUserStats,
		{wire.ChannelComm, MsgUpdateUserStatRequest}:                  c.handleUpdateUserStat,
		{wire.ChannelComm, MsgDeleteUserStatsRequest}:                 c.handleDeleteUserStats,
		{wire.ChannelComm, MsgGetUserAchievementsRequest}:             c.handleGetUserAchievements,
		{wire.ChannelComm, MsgUnlockUserAchievementRequest}:           c.handleUnlockUserAchievement,
		{wire.ChannelComm, MsgClearUserAchievementRequest}:            c.handleClearUserAchievement,
		{wire.ChannelComm, MsgDeleteUserAchievementsRequest}:          c.handleDeleteUserAchievements,
		{wire.ChannelComm, MsgGetLeaderboardsRequest}:                 c.handleGetLeaderboards,
		{wire.ChannelComm, MsgGetLeaderboardEntriesGlobalRequest}:     c.handleLeaderboardEntriesGlobal,
		{wire.ChannelComm, MsgGetLeaderboardEntriesAroundUserRequest}: c.handleLeaderboardEntriesAroundUser,
		{wire.ChannelWebBroker, MsgBrokerSubscribeTopicRequest}:       c.handleSubscribeTopic,
	}
	return c
}

// Has reports whether a handler is registered for the key.
func (c *Catalog) Has(key Key) bool {
	_, ok := c.handlers[key]
	return ok
}

// Dispatch resolves and invokes the handler for the frame.
//
// The returned frame, when non-nil, is a complete response: the channel is
// forced to the request's channel and, when the request carried an oseq,
// the response carries the matching rseq. A nil frame with a nil error
// means the message produced no reply (unknown key, or an operation with
// no error-capable response).
func (c *Catalog) Dispatch(ctx context.Context, sess Session, frame *wire.Frame) (*wire.Frame, error) {
	key := Key{Channel: frame.Header.Channel, Type: frame.Header.Type}
	handler, ok := c.handlers[key]
	if !ok {
		c.metrics.IncDispatchMiss()
		c.log.Warn("unhandled message",
			zap.Uint16("channel", key.Channel),
			zap.Uint16("type", key.Type),
		)
		return nil, nil
	}

	resp, err := handler(ctx, sess, frame)
	if err != nil || resp == nil {
		return nil, err
	}

	resp.Header.Channel = frame.Header.Channel
	if frame.Header.Oseq != 0 {
		resp.Header.Rseq = frame.Header.Oseq
	}
	return resp, nil
}

// newResponse builds a response frame with a msgpack body. A nil body
// yields an empty payload.
func newResponse(msgType uint16, code uint32, body any) (*wire.Frame, error) {
	header := wire.Header{Channel: wire.ChannelComm, Type: msgType, Code: code}
	if body == nil {
		return &wire.Frame{Header: header}, nil
	}
	payload, err := msgpack.Marshal(body)
	if err != nil {
		return nil, err
	}
	header.Size = uint32(len(payload))
	return &wire.Frame{Header: header, Payload: payload}, nil
}
