package config

import "time"

type AppConfig struct {
	NodeID   int64          `yaml:"node_id"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	WS       WSConfig       `yaml:"ws"`
	Storage  StorageConfig  `yaml:"storage"`
	Events   EventsConfig   `yaml:"events"`
	Presence PresenceConfig `yaml:"presence"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"` // gin mode: debug|release|test
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	OriginPatterns  []string      `yaml:"origin_patterns"` // regular expressions
	BodyLimit       int64         `yaml:"body_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SendRate        float64       `yaml:"send_rate"` // messages/sec per user on the send endpoint
	SendBurst       int           `yaml:"send_burst"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	Alg        string        `yaml:"alg"`
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookie_name"`
}

type WSConfig struct {
	ReadLimit     int64         `yaml:"read_limit"`
	PingInterval  time.Duration `yaml:"ping_interval"`
	PongWait      time.Duration `yaml:"pong_wait"`
	WriteWait     time.Duration `yaml:"write_wait"`
	PushTimeout   time.Duration `yaml:"push_timeout"`
	SendQueue     int           `yaml:"send_queue"`
	InboundRate   float64       `yaml:"inbound_rate"`
	InboundBurst  int           `yaml:"inbound_burst"`
	BroadcastWait time.Duration `yaml:"broadcast_wait"` // coalescing window before a presence broadcast
}

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

type MongoConfig struct {
	URI         string `yaml:"uri"`
	Database    string `yaml:"database"`
	Collection  string `yaml:"collection"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	MaxPoolSize int    `yaml:"max_pool_size"`
	MaxRetry    int    `yaml:"max_retry"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type EventsConfig struct {
	NATS  NATSConfig  `yaml:"nats"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type NATSConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Servers       string        `yaml:"servers"`
	Name          string        `yaml:"name"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	Timeout       time.Duration `yaml:"timeout"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
}

type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	ClientID    string   `yaml:"client_id"`
	Version     string   `yaml:"version"`
	TopicPrefix string   `yaml:"topic_prefix"`
	Compression string   `yaml:"compression"`
	Retries     int      `yaml:"retries"`
	Partitions  int32    `yaml:"partitions"`
	Replication int16    `yaml:"replication"`
	EnsureTopic bool     `yaml:"ensure_topics"`
}

// PresenceConfig controls the redis mirror of the online set.
type PresenceConfig struct {
	RedisMirror bool          `yaml:"redis_mirror"`
	Redis       RedisConfig   `yaml:"redis"`
	TTL         time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		NodeID: 1,
		Server: ServerConfig{
			Addr: ":4000",
			Mode: "release",
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://localhost:5174",
				"http://localhost:3000",
				"http://127.0.0.1:5173",
			},
			OriginPatterns: []string{
				`^https://chatting-app-h118-.*\.vercel\.app$`,
				`^https://.*\.onrender\.com$`,
				`^https://.*\.netlify\.app$`,
			},
			BodyLimit:       10 << 20,
			ShutdownTimeout: 10 * time.Second,
			SendRate:        5,
			SendBurst:       10,
		},
		Auth: AuthConfig{
			Alg:        "HS256",
			TTL:        7 * 24 * time.Hour,
			CookieName: "jwt",
		},
		WS: WSConfig{
			ReadLimit:     64 << 10,
			PingInterval:  25 * time.Second,
			PongWait:      60 * time.Second,
			WriteWait:     10 * time.Second,
			PushTimeout:   5 * time.Second,
			SendQueue:     256,
			InboundRate:   20,
			InboundBurst:  40,
			BroadcastWait: 0,
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
			Mongo: MongoConfig{
				URI:         "mongodb://localhost:27017",
				Database:    "chatty",
				Collection:  "messages",
				MaxPoolSize: 10,
				MaxRetry:    3,
			},
			Postgres: PostgresConfig{MaxConns: 10},
			Redis:    RedisConfig{Addr: "127.0.0.1:6379", PoolSize: 20},
		},
		Events: EventsConfig{
			NATS: NATSConfig{
				Servers:       "nats://127.0.0.1:4222",
				Name:          "chat-server",
				SubjectPrefix: "chat",
				ReconnectWait: 2 * time.Second,
				Timeout:       5 * time.Second,
			},
			Kafka: KafkaConfig{
				Brokers:     []string{"127.0.0.1:9092"},
				ClientID:    "chat-server",
				Version:     "2.1.0",
				TopicPrefix: "chat",
				Compression: "snappy",
				Retries:     3,
				Partitions:  8,
				Replication: 1,
			},
		},
		Presence: PresenceConfig{
			Redis: RedisConfig{Addr: "127.0.0.1:6379", PoolSize: 10},
			TTL:   90 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}
