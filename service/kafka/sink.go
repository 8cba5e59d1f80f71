package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/affanraza84/Chatting-App/logger"
	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/affanraza84/Chatting-App/tools/safe"
	"go.uber.org/zap"
)

const (
	KindOnline  = "presence.online"
	KindOffline = "presence.offline"
	KindMessage = "message.created"
)

func topic(prefix, kind string) string {
	if prefix == "" {
		return kind
	}
	return prefix + "." + kind
}

// Topics lists every topic the sink writes to.
func Topics(prefix string) []string {
	return []string{topic(prefix, KindOnline), topic(prefix, KindOffline), topic(prefix, KindMessage)}
}

type presenceRecord struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
	Node   string `json:"node"`
	At     int64  `json:"at"`
}

// Sink writes chat events to one topic per kind. Presence is keyed by user
// id and messages by receiver id.
type Sink struct {
	p      sarama.SyncProducer
	prefix string
	node   string
	now    func() time.Time
}

func NewSink(p sarama.SyncProducer, prefix, node string) *Sink {
	return &Sink{p: p, prefix: prefix, node: node, now: time.Now}
}

func (s *Sink) UserOnline(ctx context.Context, user string) error {
	return s.presence(ctx, user, true)
}

func (s *Sink) UserOffline(ctx context.Context, user string) error {
	return s.presence(ctx, user, false)
}

func (s *Sink) presence(ctx context.Context, user string, online bool) error {
	kind := KindOffline
	if online {
		kind = KindOnline
	}
	b, err := json.Marshal(presenceRecord{UserID: user, Online: online, Node: s.node, At: s.now().UnixMilli()})
	if err != nil {
		return errs.WrapMsg(err, "encode presence")
	}
	return s.send(ctx, kind, user, b)
}

func (s *Sink) MessageCreated(ctx context.Context, m *model.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return errs.WrapMsg(err, "encode message", "id", m.ID)
	}
	return s.send(ctx, KindMessage, m.ReceiverID, b)
}

// send waits for the broker ack until ctx is done. The sync producer cannot
// abandon an in-flight send, so on timeout the send finishes in the
// background and only its failure is logged.
func (s *Sink) send(ctx context.Context, kind, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic(s.prefix, kind),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("node"), Value: []byte(s.node)},
		},
	}
	errCh := make(chan error, 1)
	safe.Go("kafka.send", func() {
		_, _, err := s.p.SendMessage(msg)
		errCh <- err
	})
	select {
	case err := <-errCh:
		if err != nil {
			return errs.WrapMsg(err, "kafka send", "topic", msg.Topic, "key", key)
		}
		return nil
	case <-ctx.Done():
		safe.Go("kafka.send.late", func() {
			if err := <-errCh; err != nil {
				logger.Warn("[Kafka] late send failed", zap.String("topic", msg.Topic), zap.String("key", key), zap.Error(err))
			}
		})
		return errs.WrapMsg(ctx.Err(), "kafka send abandoned", "topic", msg.Topic, "key", key)
	}
}

func (s *Sink) Close() error { return s.p.Close() }
