package storage

import (
	"context"
	"time"

	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: im:presence:<user>
// Value: node id, TTL controls the online validity period
func presenceKey(user string) string { return "im:presence:" + user }

// PresenceMirror copies the online set into redis for other services.
// Keys expire unless Refresh renews them, so a dead node ages out.
type PresenceMirror struct {
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

func NewPresenceMirror(rdb *redis.Client, nodeID string, ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &PresenceMirror{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

func (p *PresenceMirror) TTL() time.Duration { return p.ttl }

func (p *PresenceMirror) UserOnline(ctx context.Context, user string) error {
	if err := p.rdb.Set(ctx, presenceKey(user), p.nodeID, p.ttl).Err(); err != nil {
		return errs.ErrStorage.WrapMsg("presence set", "user", user, "err", err.Error())
	}
	return nil
}

func (p *PresenceMirror) UserOffline(ctx context.Context, user string) error {
	if err := p.rdb.Del(ctx, presenceKey(user)).Err(); err != nil {
		return errs.ErrStorage.WrapMsg("presence del", "user", user, "err", err.Error())
	}
	return nil
}

func (p *PresenceMirror) MessageCreated(context.Context, *model.Message) error { return nil }

// Refresh renews the keys of every user in one pipeline.
func (p *PresenceMirror) Refresh(ctx context.Context, users []string) error {
	if len(users) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, u := range users {
		pipe.Set(ctx, presenceKey(u), p.nodeID, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.ErrStorage.WrapMsg("presence refresh", "users", len(users), "err", err.Error())
	}
	return nil
}

// Lookup reports whether user is online and on which node.
func (p *PresenceMirror) Lookup(ctx context.Context, user string) (string, bool, error) {
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.ErrStorage.WrapMsg("presence get", "user", user, "err", err.Error())
	}
	return val, true, nil
}
