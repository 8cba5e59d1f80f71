package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadLayers(t *testing.T) {
	yml := writeFile(t, "chat.yaml", `
server:
  addr: ":9000"
  origin_patterns: ['^https://.*\.example\.com$']
ws:
  push_timeout: 2s
storage:
  driver: mongo
  mongo:
    database: chat_test
auth:
  jwt_secret: from-file
`)
	env := writeFile(t, ".env", "CHAT_WS__SEND_QUEUE=32\n")

	t.Setenv("CHAT_LOG__LEVEL", "debug")
	t.Setenv("CHAT_EVENTS__KAFKA__BROKERS", "k1:9092, k2:9092")
	t.Setenv("CHAT_EVENTS__NATS__ENABLED", "true")
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("FRONTEND_URL", "https://chat.example.org")
	t.Cleanup(func() { os.Unsetenv("CHAT_WS__SEND_QUEUE") })

	cfg, err := Load(yml, env)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.WS.PushTimeout)
	assert.Equal(t, 32, cfg.WS.SendQueue)
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "chat_test", cfg.Storage.Mongo.Database)
	assert.Equal(t, "messages", cfg.Storage.Mongo.Collection)
	assert.Equal(t, "mongodb://mongo:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Kafka.Brokers)
	assert.True(t, cfg.Events.NATS.Enabled)
	assert.Contains(t, cfg.Server.AllowedOrigins, "https://chat.example.org")
	assert.Equal(t, []string{`^https://.*\.example\.com$`}, cfg.Server.OriginPatterns)
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	t.Setenv("CHAT_AUTH__JWT_SECRET", "s")
	cfg, err := Load("", filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Server.Addr)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
}

func TestPortAlias(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, []string{"PORT=5001", "UNRELATED=1"}))
	assert.Equal(t, ":5001", cfg.Server.Addr)
}

func TestEnvListReplacesDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, []string{
		"CHAT_SERVER__ALLOWED_ORIGINS=https://only.example.com",
		`CHAT_SERVER__ORIGIN_PATTERNS=^https://x\.example\.com$`,
		"FRONTEND_URL=https://app.example.com",
	}))
	assert.Equal(t, []string{"https://only.example.com", "https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, []string{`^https://x\.example\.com$`}, cfg.Server.OriginPatterns)

	// untouched lists keep their defaults
	assert.Equal(t, Default().Events.Kafka.Brokers, cfg.Events.Kafka.Brokers)
	assert.Equal(t, ":4000", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *AppConfig){
		"no secret":      func(c *AppConfig) { c.Auth.JWTSecret = "" },
		"bad driver":     func(c *AppConfig) { c.Storage.Driver = "sqlite" },
		"postgres dsn":   func(c *AppConfig) { c.Storage.Driver = DriverPostgres },
		"push timeout":   func(c *AppConfig) { c.WS.PushTimeout = 0 },
		"pong wait":      func(c *AppConfig) { c.WS.PongWait = c.WS.PingInterval },
		"send queue":     func(c *AppConfig) { c.WS.SendQueue = 0 },
		"origin pattern": func(c *AppConfig) { c.Server.OriginPatterns = []string{"("} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			c.Auth.JWTSecret = "s"
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrArgs))
		})
	}

	c := Default()
	c.Auth.JWTSecret = "s"
	assert.NoError(t, c.Validate())
}
