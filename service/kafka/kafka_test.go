package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder keeps every message before the mock sees it.
type recorder struct {
	sarama.SyncProducer
	sent []*sarama.ProducerMessage
}

func (r *recorder) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	r.sent = append(r.sent, msg)
	return r.SyncProducer.SendMessage(msg)
}

func keyOf(t *testing.T, msg *sarama.ProducerMessage) string {
	t.Helper()
	b, err := msg.Key.Encode()
	require.NoError(t, err)
	return string(b)
}

func TestSinkTopicsAndKeys(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var rec presenceRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if !rec.Online || rec.UserID != "u1" || rec.At != 5000 {
			return errors.New("unexpected presence record")
		}
		return nil
	})
	mp.ExpectSendMessageAndSucceed()
	mp.ExpectSendMessageAndSucceed()

	rec := &recorder{SyncProducer: mp}
	s := NewSink(rec, "chat", "n1")
	s.now = func() time.Time { return time.UnixMilli(5000) }

	ctx := context.Background()
	require.NoError(t, s.UserOnline(ctx, "u1"))
	require.NoError(t, s.UserOffline(ctx, "u1"))
	require.NoError(t, s.MessageCreated(ctx, &model.Message{ID: "9", SenderID: "u1", ReceiverID: "u2", Text: "hi"}))
	require.NoError(t, s.Close())

	require.Len(t, rec.sent, 3)
	assert.Equal(t, "chat.presence.online", rec.sent[0].Topic)
	assert.Equal(t, "chat.presence.offline", rec.sent[1].Topic)
	assert.Equal(t, "chat.message.created", rec.sent[2].Topic)
	assert.Equal(t, "u1", keyOf(t, rec.sent[0]))
	assert.Equal(t, "u2", keyOf(t, rec.sent[2]))
	assert.Equal(t, "node", string(rec.sent[2].Headers[0].Key))
}

func TestSinkSendFailure(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s := NewSink(mp, "", "n1")
	err := s.UserOnline(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
	require.NoError(t, mp.Close())
}

func TestSinkSkipsCancelledContext(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewSink(mp, "", "n1").UserOnline(ctx, "u1"), context.Canceled)
	require.NoError(t, mp.Close())
}

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{"x.presence.online", "x.presence.offline", "x.message.created"}, Topics("x"))
	assert.Equal(t, "message.created", topic("", KindMessage))
}

func TestBuildBaseConfig(t *testing.T) {
	cfg, err := BuildBaseConfig(Config{Version: "2.1.0", Compression: "LZ4"})
	require.NoError(t, err)
	assert.Equal(t, sarama.CompressionLZ4, cfg.Producer.Compression)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.Equal(t, 3, cfg.Producer.Retry.Max)
	assert.Equal(t, "chat-server", cfg.ClientID)

	_, err = BuildBaseConfig(Config{Version: "not-a-version"})
	assert.Error(t, err)
}

func TestNewSyncProducerNeedsBrokers(t *testing.T) {
	_, err := NewSyncProducer(Config{})
	assert.Error(t, err)
}

type fakeAdmin struct {
	existing map[string]bool
	created  map[string]*sarama.TopicDetail
	race     string
}

func (f *fakeAdmin) DescribeTopics(topics []string) ([]*sarama.TopicMetadata, error) {
	var out []*sarama.TopicMetadata
	for _, t := range topics {
		md := &sarama.TopicMetadata{Name: t, Err: sarama.ErrUnknownTopicOrPartition}
		if f.existing[t] {
			md.Err = sarama.ErrNoError
		}
		out = append(out, md)
	}
	return out, nil
}

func (f *fakeAdmin) CreateTopic(topic string, detail *sarama.TopicDetail, _ bool) error {
	if topic == f.race {
		return &sarama.TopicError{Err: sarama.ErrTopicAlreadyExists}
	}
	f.created[topic] = detail
	return nil
}

func TestEnsureTopics(t *testing.T) {
	admin := &fakeAdmin{
		existing: map[string]bool{"c.presence.online": true},
		created:  map[string]*sarama.TopicDetail{},
		race:     "c.presence.offline",
	}
	require.NoError(t, EnsureTopics(admin, Topics("c"), 4, 3))

	require.Len(t, admin.created, 1)
	d := admin.created["c.message.created"]
	require.NotNil(t, d)
	assert.Equal(t, int32(4), d.NumPartitions)
	assert.Equal(t, "2", *d.ConfigEntries["min.insync.replicas"])
}

// stalledProducer holds every send until release is closed.
type stalledProducer struct {
	sarama.SyncProducer
	release chan struct{}
}

func (p *stalledProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	<-p.release
	return 0, 0, sarama.ErrRequestTimedOut
}

func TestSinkGivesUpAtDeadline(t *testing.T) {
	p := &stalledProducer{release: make(chan struct{})}
	t.Cleanup(func() { close(p.release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := NewSink(p, "chat", "n1").MessageCreated(ctx, &model.Message{ID: "1", ReceiverID: "u2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
