package message

import (
	"context"
	"sort"
	"sync"

	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
)

// Store is the durable message log.
type Store interface {
	// Append persists m. Implementations must not return before m is durable.
	Append(ctx context.Context, m *model.Message) error
	// ListBetween returns both directions of the a/b conversation, oldest first.
	ListBetween(ctx context.Context, a, b string, opts model.ListOptions) ([]*model.Message, error)
	Close(ctx context.Context) error
}

// MemoryStore keeps messages in process. Used by default and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[[2]string][]*model.Message
	ids   map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs: make(map[[2]string][]*model.Message),
		ids:   make(map[string]struct{}),
	}
}

func (s *MemoryStore) Append(ctx context.Context, m *model.Message) error {
	if err := ctx.Err(); err != nil {
		return errs.ErrStorage.WrapMsg("append canceled", "err", err.Error())
	}
	if m == nil || m.ID == "" {
		return errs.ErrArgs.WrapMsg("message id required")
	}
	a, b := model.PairKey(m.SenderID, m.ReceiverID)
	cp := *m

	s.mu.Lock()
	defer s.mu.Unlock()
	// at-least-once callers may retry an append
	if _, dup := s.ids[m.ID]; dup {
		return nil
	}
	s.ids[m.ID] = struct{}{}
	list := s.convs[[2]string{a, b}]
	i := sort.Search(len(list), func(i int) bool { return list[i].CreatedAt.After(cp.CreatedAt) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = &cp
	s.convs[[2]string{a, b}] = list
	return nil
}

func (s *MemoryStore) ListBetween(ctx context.Context, a, b string, opts model.ListOptions) ([]*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.ErrStorage.WrapMsg("list canceled", "err", err.Error())
	}
	opts = opts.Norm()
	ka, kb := model.PairKey(a, b)

	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.convs[[2]string{ka, kb}]
	end := len(list)
	if !opts.Before.IsZero() {
		end = sort.Search(len(list), func(i int) bool { return !list[i].CreatedAt.Before(opts.Before) })
	}
	start := end - opts.Limit
	if start < 0 {
		start = 0
	}
	out := make([]*model.Message, 0, end-start)
	for _, m := range list[start:end] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// Len returns the number of stored messages.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *MemoryStore) Close(context.Context) error { return nil }
