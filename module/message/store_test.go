package message

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id int, from, to string, at time.Time) *model.Message {
	return &model.Message{ID: strconv.Itoa(id), SenderID: from, ReceiverID: to, Text: "m" + strconv.Itoa(id), CreatedAt: at, UpdatedAt: at}
}

func ids(list []*model.Message) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

func TestMemoryStoreListBetween(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, msg(1, "A", "B", base)))
	require.NoError(t, s.Append(ctx, msg(3, "A", "B", base.Add(2*time.Second))))
	require.NoError(t, s.Append(ctx, msg(2, "B", "A", base.Add(time.Second))))
	require.NoError(t, s.Append(ctx, msg(4, "A", "C", base.Add(time.Second))))
	// retried append is absorbed
	require.NoError(t, s.Append(ctx, msg(1, "A", "B", base)))

	got, err := s.ListBetween(ctx, "B", "A", model.ListOptions{})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids(got)); diff != "" {
		t.Fatalf("conversation mismatch (-want +got):\n%s", diff)
	}

	got, err = s.ListBetween(ctx, "A", "B", model.ListOptions{Before: base.Add(2 * time.Second), Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(got))

	got, err = s.ListBetween(ctx, "A", "Z", model.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 4, s.Len())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m := msg(1, "A", "B", time.Now())
	require.NoError(t, s.Append(ctx, m))
	m.Text = "mutated"

	got, err := s.ListBetween(ctx, "A", "B", model.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].Text)
}

func TestMemoryStoreErrors(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Append(ctx, msg(1, "A", "B", time.Now()))
	assert.True(t, errors.Is(err, errs.ErrStorage))

	err = s.Append(context.Background(), &model.Message{SenderID: "A"})
	assert.True(t, errors.Is(err, errs.ErrArgs))
}

func TestListOptionsNorm(t *testing.T) {
	assert.Equal(t, model.DefaultListLimit, model.ListOptions{}.Norm().Limit)
	assert.Equal(t, model.MaxListLimit, model.ListOptions{Limit: 1 << 20}.Norm().Limit)
	assert.Equal(t, 5, model.ListOptions{Limit: 5}.Norm().Limit)
}
