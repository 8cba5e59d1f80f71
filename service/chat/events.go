package chat

import (
	"context"
	"errors"

	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/safe"
)

var errSinkTimeout = errors.New("event sink timed out")

// ===== event sinks =====

// EventSink receives presence and message events for systems outside this
// process. Sink errors never affect presence or delivery.
type EventSink interface {
	UserOnline(ctx context.Context, user string) error
	UserOffline(ctx context.Context, user string) error
	MessageCreated(ctx context.Context, m *model.Message) error
}

type NopSink struct{}

func (NopSink) UserOnline(context.Context, string) error             { return nil }
func (NopSink) UserOffline(context.Context, string) error            { return nil }
func (NopSink) MessageCreated(context.Context, *model.Message) error { return nil }

// MultiSink fans out to every sink and joins their errors.
type MultiSink []EventSink

func (m MultiSink) UserOnline(ctx context.Context, user string) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.UserOnline(ctx, user))
	}
	return errors.Join(errs...)
}

func (m MultiSink) UserOffline(ctx context.Context, user string) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.UserOffline(ctx, user))
	}
	return errors.Join(errs...)
}

func (m MultiSink) MessageCreated(ctx context.Context, msg *model.Message) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.MessageCreated(ctx, msg))
	}
	return errors.Join(errs...)
}

// callSink runs fn and gives up when ctx is done, whether or not fn
// honours ctx. A sink that overruns keeps running in the background.
func callSink(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	errCh := make(chan error, 1)
	safe.Go(name, func() { errCh <- fn(ctx) })
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return errors.Join(ctx.Err(), errSinkTimeout)
	}
}
