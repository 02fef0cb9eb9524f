package catalog

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/pithecene-io/gantry/wire"
)

// handleSubscribeTopic is the local stub for push-channel subscriptions
// arriving on the client socket. No backend call: the gateway-side pusher
// connection manages the real subscriptions, so this just confirms the
// topic and records it on the session.
func (c *Catalog) handleSubscribeTopic(_ context.Context, sess Session, frame *wire.Frame) (*wire.Frame, error) {
	var req SubscribeTopicRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}

	sess.AddTopic(req.Topic)
	c.log.Debug("client subscribed to topic", zap.String("topic", req.Topic))

	resp, err := newResponse(MsgBrokerSubscribeTopicResponse, 0, SubscribeTopicResponse{Topic: req.Topic})
	if err != nil {
		return nil, err
	}
	resp.Header.Channel = wire.ChannelWebBroker
	return resp, nil
}
