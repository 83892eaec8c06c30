package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/board"
)

// Redis publishes each status change as JSON on a Pub/Sub channel so other
// consumers (wall displays, paging) can follow the board.
type Redis struct {
	rdb     *goredis.Client
	channel string
	log     *zap.Logger
}

// NewRedis connects and pings the server.
func NewRedis(addr, password, channel string, log *zap.Logger) (*Redis, error) {
	if log == nil {
		log = zap.L()
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	log.Info("redis connected", zap.String("addr", addr), zap.String("channel", channel))
	return &Redis{rdb: rdb, channel: channel, log: log}, nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Notify(ctx context.Context, changes []board.StatusChange) error {
	for _, c := range changes {
		b, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := r.rdb.Publish(ctx, r.channel, b).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Listen calls fn for every change published on the channel until ctx is done.
func (r *Redis) Listen(ctx context.Context, fn func(board.StatusChange)) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var c board.StatusChange
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				r.log.Warn("bad status change payload", zap.Error(err))
				continue
			}
			fn(c)
		}
	}
}

func (r *Redis) Close() error { return r.rdb.Close() }
