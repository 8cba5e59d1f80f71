package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/redis/go-redis/v9"
)

// conversation history in redis streams

const (
	streamMaxLen = 100_000
	seenTTL      = 24 * time.Hour
	fieldMsg     = "m"
)

// DMKey is the stream of the conversation between a and b.
func DMKey(a, b string) string {
	lo, hi := model.PairKey(a, b)
	return fmt.Sprintf("im:dm:%s:%s", lo, hi)
}

func seenKey(id string) string { return "im:msgid:" + id }

// StreamStore keeps each conversation in one capped stream.
type StreamStore struct {
	rdb *redis.Client
}

func NewStreamStore(rdb *redis.Client) *StreamStore { return &StreamStore{rdb: rdb} }

// Append adds m to its conversation stream. A message id seen within
// seenTTL is skipped.
func (s *StreamStore) Append(ctx context.Context, m *model.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return errs.ErrArgs.WrapMsg("encode message", "id", m.ID, "err", err.Error())
	}
	fresh, err := s.rdb.SetNX(ctx, seenKey(m.ID), 1, seenTTL).Result()
	if err != nil {
		return errs.ErrStorage.WrapMsg("redis setnx", "id", m.ID, "err", err.Error())
	}
	if !fresh {
		return nil
	}
	args := &redis.XAddArgs{
		Stream: DMKey(m.SenderID, m.ReceiverID),
		Values: map[string]any{fieldMsg: b},
		Approx: true,
		MaxLen: streamMaxLen,
	}
	if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
		// let a retry through
		_ = s.rdb.Del(ctx, seenKey(m.ID)).Err()
		return errs.ErrStorage.WrapMsg("redis xadd", "id", m.ID, "err", err.Error())
	}
	return nil
}

func (s *StreamStore) ListBetween(ctx context.Context, a, b string, opts model.ListOptions) ([]*model.Message, error) {
	opts = opts.Norm()
	end := "+"
	if !opts.Before.IsZero() {
		end = streamEnd(opts.Before)
	}
	entries, err := s.rdb.XRevRangeN(ctx, DMKey(a, b), end, "-", int64(opts.Limit)).Result()
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("redis xrevrange", "err", err.Error())
	}
	return decodeEntries(entries, opts.Before)
}

func (s *StreamStore) Close(context.Context) error { return s.rdb.Close() }

// streamEnd is the last entry id written strictly before t.
func streamEnd(t time.Time) string {
	ms := t.UnixMilli() - 1
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms, 10)
}

// decodeEntries turns newest first entries into an ascending list.
func decodeEntries(entries []redis.XMessage, before time.Time) ([]*model.Message, error) {
	out := make([]*model.Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		raw, ok := entries[i].Values[fieldMsg].(string)
		if !ok {
			continue
		}
		var m model.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, errs.ErrStorage.WrapMsg("decode stream entry", "entry", entries[i].ID, "err", err.Error())
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}
