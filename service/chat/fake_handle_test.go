package chat

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var fakeSeq atomic.Int64

// fakeHandle records pushed events. block makes Push wait for ctx or Close.
type fakeHandle struct {
	id   string
	user string

	mu      sync.Mutex
	events  []Event
	pushErr error
	block   bool

	done chan struct{}
	once sync.Once
}

func newFake(user string) *fakeHandle {
	return &fakeHandle{
		id:   "fake-" + strconv.FormatInt(fakeSeq.Add(1), 10),
		user: user,
		done: make(chan struct{}),
	}
}

func (f *fakeHandle) ID() string            { return f.id }
func (f *fakeHandle) UserID() string        { return f.user }
func (f *fakeHandle) Done() <-chan struct{} { return f.done }
func (f *fakeHandle) Close()                { f.once.Do(func() { close(f.done) }) }

func (f *fakeHandle) Closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *fakeHandle) Push(ctx context.Context, ev Event) error {
	if f.Closed() {
		return ErrConnClosed
	}
	f.mu.Lock()
	block, perr := f.block, f.pushErr
	f.mu.Unlock()
	if block {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "blocked")
		case <-f.done:
			return ErrConnClosed
		}
	}
	if perr != nil {
		return perr
	}
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeHandle) all() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *fakeHandle) named(name string) []Event {
	var out []Event
	for _, ev := range f.all() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// lastOnline returns the payload of the latest getOnlineUsers event.
func (f *fakeHandle) lastOnline() ([]string, bool) {
	evs := f.named(EventOnlineUsers)
	if len(evs) == 0 {
		return nil, false
	}
	return evs[len(evs)-1].Data.([]string), true
}
