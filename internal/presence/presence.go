// Package presence publishes per-instance session counts to Redis and sums
// them across instances. The numbers are cosmetic and never drive matching.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pairsignal/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	instancesKey = "presence:instances"
	keyPrefix    = "presence:"
)

// StatsSource yields the counts of this instance.
type StatsSource interface {
	Stats() session.Stats
}

// Provider returns counts for the /stats endpoint.
type Provider interface {
	Stats(ctx context.Context) (session.Stats, error)
}

// Local serves the counts of this instance only.
type Local struct {
	Source StatsSource
}

func (l Local) Stats(context.Context) (session.Stats, error) {
	return l.Source.Stats(), nil
}

func instanceKey(instance string) string { return keyPrefix + instance }

// Publisher writes this instance's counts on every tick. The hash expires
// after ttl, so a dead instance drops out on its own.
type Publisher struct {
	rdc      *redis.Client
	source   StatsSource
	instance string
	ttl      time.Duration
}

func NewPublisher(rdc *redis.Client, source StatsSource, instance string, interval time.Duration) *Publisher {
	return &Publisher{
		rdc:      rdc,
		source:   source,
		instance: instance,
		ttl:      3 * interval,
	}
}

// PublishOnce writes the current counts.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	st := p.source.Stats()
	key := instanceKey(p.instance)

	if err := p.rdc.HSet(ctx, key,
		"online", st.Online,
		"queued", st.Queued,
		"paired", st.Paired,
		"rooms", st.Rooms,
	).Err(); err != nil {
		return fmt.Errorf("presence hset: %w", err)
	}
	if err := p.rdc.Expire(ctx, key, p.ttl).Err(); err != nil {
		return fmt.Errorf("presence expire: %w", err)
	}
	if err := p.rdc.SAdd(ctx, instancesKey, p.instance).Err(); err != nil {
		return fmt.Errorf("presence sadd: %w", err)
	}
	return nil
}

// Withdraw removes this instance immediately, used on shutdown.
func (p *Publisher) Withdraw(ctx context.Context) error {
	if err := p.rdc.Del(ctx, instanceKey(p.instance)).Err(); err != nil {
		return err
	}
	return p.rdc.SRem(ctx, instancesKey, p.instance).Err()
}

// Run publishes every interval until ctx is done, then withdraws.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	tk := time.NewTicker(interval)
	defer tk.Stop()

	if err := p.PublishOnce(ctx); err != nil {
		zap.L().Warn("presence.publish", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			wctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := p.Withdraw(wctx); err != nil {
				zap.L().Debug("presence.withdraw", zap.Error(err))
			}
			cancel()
			return
		case <-tk.C:
			if err := p.PublishOnce(ctx); err != nil {
				zap.L().Warn("presence.publish", zap.Error(err))
			}
		}
	}
}

// Aggregator sums the counts of every live instance.
type Aggregator struct {
	rdc *redis.Client
}

func NewAggregator(rdc *redis.Client) *Aggregator {
	return &Aggregator{rdc: rdc}
}

// Stats reads all registered instances. Instances whose hash has expired
// are pruned from the set.
func (a *Aggregator) Stats(ctx context.Context) (session.Stats, error) {
	var total session.Stats

	instances, err := a.rdc.SMembers(ctx, instancesKey).Result()
	if err != nil {
		return total, fmt.Errorf("presence smembers: %w", err)
	}

	for _, inst := range instances {
		data, err := a.rdc.HGetAll(ctx, instanceKey(inst)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return total, fmt.Errorf("presence hgetall %s: %w", inst, err)
		}
		if len(data) == 0 {
			if err := a.rdc.SRem(ctx, instancesKey, inst).Err(); err != nil {
				zap.L().Debug("presence.prune", zap.String("instance", inst), zap.Error(err))
			}
			continue
		}
		total.Online += atoi(data["online"])
		total.Queued += atoi(data["queued"])
		total.Paired += atoi(data["paired"])
		total.Rooms += atoi(data["rooms"])
	}
	return total, nil
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
