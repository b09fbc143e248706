package bus

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/observability"
)

const bridgeChannel = "messaging:bus"

// Router bridges bus frames between instances over redis pub/sub so that a
// user's devices converge no matter which instance they are connected to.
// Frames carry the publishing instance id; subscribers skip their own.
type Router struct {
	client     *redis.Client
	instanceID string
}

func NewRouter(addr, instanceID string) *Router {
	return &Router{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		instanceID: instanceID,
	}
}

func (r *Router) Publish(ctx context.Context, payload []byte) error {
	framed := append([]byte(r.instanceID+"|"), payload...)
	return r.client.Publish(ctx, bridgeChannel, framed).Err()
}

func (r *Router) Subscribe(ctx context.Context, handler func([]byte)) {
	pubsub := r.client.Subscribe(ctx, bridgeChannel)

	go func() {
		log := observability.GetLogger(ctx)
		log.Info("bus router: subscribed", zap.String("channel", bridgeChannel))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info("bus router: subscription loop stopping: context canceled")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Warn("bus router: pubsub channel closed")
					return
				}
				origin, payload := splitFrame([]byte(msg.Payload))
				if origin == r.instanceID {
					continue
				}
				handler(payload)
			}
		}
	}()
}

func (r *Router) Close() error {
	return r.client.Close()
}

func splitFrame(raw []byte) (string, []byte) {
	for i, b := range raw {
		if b == '|' {
			return string(raw[:i]), raw[i+1:]
		}
	}
	return "", raw
}
