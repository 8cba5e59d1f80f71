package chat

import (
	"context"
	"strings"
	"time"

	"github.com/affanraza84/Chatting-App/logger"
	"github.com/affanraza84/Chatting-App/module/message"
	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/affanraza84/Chatting-App/tools/ids"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type SendRequest struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      string // attachment reference
}

type CoordinatorConf struct {
	PushTimeout time.Duration
	SinkTimeout time.Duration
	IDs         *ids.Generator   // nil uses a node 1 generator
	Clock       func() time.Time // nil => time.Now
}

// Coordinator persists new messages and then pushes them to the recipient's
// live connection, best effort.
type Coordinator struct {
	store   message.Store
	reg     *Registry
	sink    EventSink
	conf    CoordinatorConf
	metrics *Metrics
}

func NewCoordinator(store message.Store, reg *Registry, sink EventSink, conf CoordinatorConf, metrics *Metrics) *Coordinator {
	if conf.PushTimeout <= 0 {
		conf.PushTimeout = 5 * time.Second
	}
	if conf.SinkTimeout <= 0 {
		conf.SinkTimeout = 2 * time.Second
	}
	if conf.IDs == nil {
		conf.IDs = ids.NewGenerator(1)
	}
	if conf.Clock == nil {
		conf.Clock = time.Now
	}
	if sink == nil {
		sink = NopSink{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Coordinator{store: store, reg: reg, sink: sink, conf: conf, metrics: metrics}
}

// Send persists the message and returns it. Only validation (ArgsError)
// and persistence (StorageError) failures are returned; push and sink
// failures are logged.
func (c *Coordinator) Send(ctx context.Context, req SendRequest) (*model.Message, error) {
	if req.SenderID == "" || req.ReceiverID == "" {
		return nil, errs.ErrArgs.WrapMsg("sender and receiver are required")
	}
	now := c.conf.Clock().UTC()
	msg := &model.Message{
		ID:         c.conf.IDs.NextString(),
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Text:       strings.TrimSpace(req.Text),
		Image:      strings.TrimSpace(req.Image),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if msg.Empty() {
		return nil, errs.ErrArgs.WrapMsg("message text or image is required")
	}

	if err := c.store.Append(ctx, msg); err != nil {
		c.metrics.Messages.WithLabelValues("storage_error").Inc()
		logger.Error("[Delivery] append failed",
			zap.String("id", msg.ID), zap.String("sender", msg.SenderID), zap.String("receiver", msg.ReceiverID), zap.Error(err))
		return nil, storageErr(err, "append message")
	}
	c.metrics.Messages.WithLabelValues("persisted").Inc()

	// the sender may drop the request; the push still belongs to this message
	bg := context.WithoutCancel(ctx)
	c.push(bg, msg)

	sctx, cancel := context.WithTimeout(bg, c.conf.SinkTimeout)
	defer cancel()
	err := callSink(sctx, "sink.message", func(ctx context.Context) error { return c.sink.MessageCreated(ctx, msg) })
	if err != nil {
		logger.Warn("[Delivery] event sink failed", zap.String("id", msg.ID), zap.Error(err))
	}
	return msg, nil
}

func (c *Coordinator) push(ctx context.Context, msg *model.Message) {
	h, ok := c.reg.Lookup(msg.ReceiverID)
	if !ok {
		c.metrics.Messages.WithLabelValues("offline").Inc()
		logger.Debug("[Delivery] receiver offline", zap.String("id", msg.ID), zap.String("receiver", msg.ReceiverID))
		return
	}
	pctx, cancel := context.WithTimeout(ctx, c.conf.PushTimeout)
	defer cancel()
	if err := h.Push(pctx, NewMessageEvent(msg)); err != nil {
		c.metrics.PushFailures.WithLabelValues("message").Inc()
		logger.Warn("[Delivery] push failed",
			zap.String("id", msg.ID), zap.String("receiver", msg.ReceiverID), zap.String("conn", h.ID()), zap.Error(err))
		return
	}
	c.metrics.Messages.WithLabelValues("pushed").Inc()
}

// History lists the conversation between a and b.
func (c *Coordinator) History(ctx context.Context, a, b string, opts model.ListOptions) ([]*model.Message, error) {
	if a == "" || b == "" {
		return nil, errs.ErrArgs.WrapMsg("both users are required")
	}
	list, err := c.store.ListBetween(ctx, a, b, opts)
	if err != nil {
		return nil, storageErr(err, "list messages")
	}
	return list, nil
}

// Online returns the current presence snapshot.
func (c *Coordinator) Online() []string {
	return c.reg.SnapshotKeys()
}

func storageErr(err error, op string) error {
	if errors.Is(err, errs.ErrStorage) {
		return err
	}
	return errs.ErrStorage.WrapMsg(op, "err", err.Error())
}
