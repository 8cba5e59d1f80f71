package config

import (
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix marks variables that overlay the file config.
// Nesting uses a double underscore: CHAT_WS__PUSH_TIMEOUT=3s.
const EnvPrefix = "CHAT_"

// compatibility names kept from the original deployment
var envAliases = map[string]string{
	"PORT":         "server.addr",
	"MONGODB_URI":  "storage.mongo.uri",
	"MONGO_URI":    "storage.mongo.uri",
	"JWT_SECRET":   "auth.jwt_secret",
	"FRONTEND_URL": "server.allowed_origins+",
	"REDIS_ADDR":   "storage.redis.addr",
	"NATS_SERVERS": "events.nats.servers",
	"LOG_LEVEL":    "log.level",
}

// Load builds the config: defaults, then the YAML file (if path is set),
// then .env (if envFile exists), then the process environment.
func Load(path, envFile string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, errs.ErrArgs.WrapMsg("parse config", "path", path, "err", err.Error())
		}
	}

	if envFile != "" {
		// godotenv never overrides variables already set in the process
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errs.WrapMsg(err, "load env file", "path", envFile)
		}
	}

	if err := ApplyEnv(&cfg, os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays KEY=VALUE pairs onto cfg.
func ApplyEnv(cfg *AppConfig, environ []string) error {
	tree := map[string]any{}
	var extraOrigins []string

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		var path string
		switch {
		case strings.HasPrefix(k, EnvPrefix):
			path = strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(k, EnvPrefix), "__", "."))
		case envAliases[k] != "":
			path = envAliases[k]
		default:
			continue
		}
		if strings.HasSuffix(path, "+") {
			if v != "" {
				extraOrigins = append(extraOrigins, v)
			}
			continue
		}
		if path == "server.addr" && k == "PORT" && !strings.Contains(v, ":") {
			v = ":" + v
		}
		setPath(tree, strings.Split(path, "."), v)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		// a list from the environment replaces the default list
		ZeroFields: true,
		Result:     cfg,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			csvHook,
		),
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if err := dec.Decode(tree); err != nil {
		return errs.ErrArgs.WrapMsg("decode env", "err", err.Error())
	}
	cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, extraOrigins...)
	return nil
}

// csvHook turns "a,b" into a slice for []string fields; mapstructure's
// own string-to-slice hook keeps empty parts.
func csvHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	var out []string
	for _, p := range strings.Split(data.(string), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func setPath(m map[string]any, parts []string, v string) {
	for i, p := range parts {
		if i == len(parts)-1 {
			m[p] = v
			return
		}
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
}

func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverMongo, DriverPostgres, DriverRedis:
	default:
		return errs.ErrArgs.WrapMsg("unknown storage driver", "driver", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errs.ErrArgs.WrapMsg("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.Storage.Driver == DriverPostgres && c.Storage.Postgres.DSN == "" {
		return errs.ErrArgs.WrapMsg("storage.postgres.dsn is required for the postgres driver")
	}
	if c.WS.PushTimeout <= 0 || c.WS.WriteWait <= 0 || c.WS.PingInterval <= 0 {
		return errs.ErrArgs.WrapMsg("ws timeouts must be positive")
	}
	if c.WS.PongWait <= c.WS.PingInterval {
		return errs.ErrArgs.WrapMsg("ws.pong_wait must exceed ws.ping_interval")
	}
	if c.WS.SendQueue <= 0 {
		return errs.ErrArgs.WrapMsg("ws.send_queue must be positive")
	}
	for _, p := range c.Server.OriginPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return errs.ErrArgs.WrapMsg("bad origin pattern", "pattern", p, "err", err.Error())
		}
	}
	return nil
}
