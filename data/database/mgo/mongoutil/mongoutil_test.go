package mongoutil

import (
	"context"
	"testing"
	"time"

	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestValidateAndSetDefaults(t *testing.T) {
	c := &Config{Address: []string{"h1:27017", "h2:27017"}, Database: "chatty", Username: "root", Password: "p@ss"}
	require.NoError(t, c.ValidateAndSetDefaults())
	assert.Equal(t, defaultMaxPoolSize, c.MaxPoolSize)
	assert.Equal(t, defaultMaxRetry, c.MaxRetry)
	assert.Equal(t, defaultSelectTimeout, c.SelectTimeout)
	assert.Equal(t, "mongodb://root:p%40ss@h1:27017,h2:27017/chatty?authSource=chatty&maxPoolSize=10", c.Uri)

	err := (&Config{Database: "x"}).ValidateAndSetDefaults()
	assert.True(t, errors.Is(err, errs.ErrArgs))
	err = (&Config{Uri: "mongodb://x"}).ValidateAndSetDefaults()
	assert.True(t, errors.Is(err, errs.ErrArgs))
}

func TestShouldRetry(t *testing.T) {
	ctx := context.Background()
	assert.True(t, shouldRetry(ctx, errors.New("connection refused")))
	assert.False(t, shouldRetry(ctx, mongo.CommandError{Code: 18}))
	assert.True(t, shouldRetry(ctx, mongo.CommandError{Code: 6}))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, shouldRetry(canceled, errors.New("x")))
}

func TestBackoffBounds(t *testing.T) {
	for n := 0; n < 10; n++ {
		d := backoff(n)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, maxBackoff)
	}
}
