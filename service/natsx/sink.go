package natsx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
)

const (
	SubjectOnline  = "presence.online"
	SubjectOffline = "presence.offline"
	SubjectMessage = "message.created"

	HeaderMsgID = "Nats-Msg-Id"
	HeaderNode  = "X-Chat-Node"
)

// Publisher is the part of NatsxClient the sink needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, hdr map[string]string) error
}

// PresencePayload is the body of presence subjects.
type PresencePayload struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
	Node   string `json:"node"`
	At     int64  `json:"at"` // unix ms
}

// Sink publishes chat events on <prefix>.presence.* and
// <prefix>.message.created.
type Sink struct {
	pub     Publisher
	prefix  string
	node    string
	retries int
	backoff time.Duration
	now     func() time.Time
}

func NewSink(pub Publisher, prefix, node string) *Sink {
	return &Sink{pub: pub, prefix: prefix, node: node, retries: 1, backoff: 100 * time.Millisecond, now: time.Now}
}

func (s *Sink) Subject(kind string) string {
	if s.prefix == "" {
		return kind
	}
	return s.prefix + "." + kind
}

func (s *Sink) UserOnline(ctx context.Context, user string) error {
	return s.presence(ctx, user, true)
}

func (s *Sink) UserOffline(ctx context.Context, user string) error {
	return s.presence(ctx, user, false)
}

func (s *Sink) presence(ctx context.Context, user string, online bool) error {
	subject := SubjectOffline
	if online {
		subject = SubjectOnline
	}
	b, err := json.Marshal(PresencePayload{UserID: user, Online: online, Node: s.node, At: s.now().UnixMilli()})
	if err != nil {
		return errs.WrapMsg(err, "encode presence")
	}
	return s.publish(ctx, s.Subject(subject), b, map[string]string{HeaderNode: s.node})
}

// MessageCreated publishes the message keyed by its id, so a JetStream
// stream on the subject drops duplicates.
func (s *Sink) MessageCreated(ctx context.Context, m *model.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return errs.WrapMsg(err, "encode message", "id", m.ID)
	}
	return s.publish(ctx, s.Subject(SubjectMessage), b, map[string]string{HeaderMsgID: m.ID, HeaderNode: s.node})
}

// publish retries a failed send after backoff until retries run out.
func (s *Sink) publish(ctx context.Context, subject string, data []byte, hdr map[string]string) error {
	var err error
	for i := 0; i <= s.retries; i++ {
		if err = s.pub.Publish(ctx, subject, data, hdr); err == nil {
			return nil
		}
		if i == s.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff):
		}
	}
	return err
}
