package mongoutil

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	defaultMaxPoolSize   = 10
	defaultMaxRetry      = 3
	defaultSelectTimeout = 5 * time.Second
	baseBackoff          = 200 * time.Millisecond
	maxBackoff           = 5 * time.Second
)

func buildMongoURI(config *Config, authSource string) string {
	credentials := ""
	if config.Username != "" && config.Password != "" {
		credentials = url.UserPassword(config.Username, config.Password).String() + "@"
	}

	return fmt.Sprintf(
		"mongodb://%s%s/%s?authSource=%s&maxPoolSize=%d",
		credentials,
		strings.Join(config.Address, ","),
		config.Database,
		authSource,
		config.MaxPoolSize,
	)
}

// shouldRetry reports whether a connect error is worth another attempt.
// Auth failures (13 Unauthorized, 18 AuthenticationFailed) are not.
func shouldRetry(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		if cmdErr, ok := err.(mongo.CommandError); ok {
			return cmdErr.Code != 13 && cmdErr.Code != 18
		}
		return true
	}
}

// backoff returns the wait before retry attempt n (0 based), with up to 20% jitter.
func backoff(n int) time.Duration {
	if n > 5 {
		n = 5
	}
	d := baseBackoff << n
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d/5) + 1))
	return d - jitter/2
}
