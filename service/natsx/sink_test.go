package natsx

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
	hdr     map[string]string
}

type fakePub struct {
	mu    sync.Mutex
	fails int
	got   []published
}

func (f *fakePub) Publish(_ context.Context, subject string, data []byte, hdr map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("nats: connection closed")
	}
	f.got = append(f.got, published{subject: subject, data: data, hdr: hdr})
	return nil
}

func newTestSink(p Publisher) *Sink {
	s := NewSink(p, "chat", "node-7")
	s.backoff = time.Millisecond
	s.now = func() time.Time { return time.UnixMilli(1000) }
	return s
}

func TestSinkPresenceSubjects(t *testing.T) {
	p := &fakePub{}
	s := newTestSink(p)

	require.NoError(t, s.UserOnline(context.Background(), "u1"))
	require.NoError(t, s.UserOffline(context.Background(), "u1"))

	require.Len(t, p.got, 2)
	assert.Equal(t, "chat.presence.online", p.got[0].subject)
	assert.Equal(t, "chat.presence.offline", p.got[1].subject)

	var pl PresencePayload
	require.NoError(t, json.Unmarshal(p.got[0].data, &pl))
	assert.Equal(t, PresencePayload{UserID: "u1", Online: true, Node: "node-7", At: 1000}, pl)
	assert.Equal(t, "node-7", p.got[1].hdr[HeaderNode])
}

func TestSinkMessageCarriesID(t *testing.T) {
	p := &fakePub{}
	s := newTestSink(p)
	m := &model.Message{ID: "42", SenderID: "a", ReceiverID: "b", Text: "hi"}

	require.NoError(t, s.MessageCreated(context.Background(), m))
	require.Len(t, p.got, 1)
	assert.Equal(t, "chat.message.created", p.got[0].subject)
	assert.Equal(t, "42", p.got[0].hdr[HeaderMsgID])
	assert.Contains(t, string(p.got[0].data), `"_id":"42"`)
}

func TestSinkRetriesOnce(t *testing.T) {
	p := &fakePub{fails: 1}
	require.NoError(t, newTestSink(p).UserOnline(context.Background(), "u1"))
	assert.Len(t, p.got, 1)

	p = &fakePub{fails: 2}
	assert.Error(t, newTestSink(p).UserOnline(context.Background(), "u1"))
	assert.Empty(t, p.got)
}

func TestSubjectWithoutPrefix(t *testing.T) {
	assert.Equal(t, "message.created", NewSink(&fakePub{}, "", "n").Subject(SubjectMessage))
}

func TestNewClientNeedsServers(t *testing.T) {
	_, err := NewNatsxClient(NatsxConfig{})
	assert.Error(t, err)
}

// Runs against a live server when CHAT_TEST_NATS_URL is set.
func TestSinkLive(t *testing.T) {
	url := os.Getenv("CHAT_TEST_NATS_URL")
	if url == "" {
		t.Skip("CHAT_TEST_NATS_URL not set")
	}
	c, err := NewNatsxClient(NatsxConfig{Servers: []string{url}, Name: "chat-test"})
	require.NoError(t, err)
	defer c.Close()

	sub, err := c.Conn().SubscribeSync("chat-test.presence.>")
	require.NoError(t, err)
	require.NoError(t, c.Conn().Flush())

	s := NewSink(c, "chat-test", "n1")
	require.NoError(t, s.UserOnline(context.Background(), "u1"))

	var msg *nats.Msg
	msg, err = sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "chat-test.presence.online", msg.Subject)
	assert.Equal(t, "n1", msg.Header.Get(HeaderNode))
}
