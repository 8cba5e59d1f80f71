package kafka

import "github.com/Shopify/sarama"

// Config is the producer side of the event sink.
type Config struct {
	Brokers           []string
	ClientID          string
	Version           string // e.g. "2.1.0"
	TopicPrefix       string
	Compression       string // none/snappy/lz4/zstd/gzip
	Retries           int
	Partitions        int32 // used when topics are created
	ReplicationFactor int16
	EnsureTopics      bool
}

func (c *Config) norm() {
	if c.ClientID == "" {
		c.ClientID = "chat-server"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Partitions <= 0 {
		c.Partitions = 8
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
}

func (c Config) version() (sarama.KafkaVersion, error) {
	if c.Version == "" {
		return sarama.V2_1_0_0, nil
	}
	return sarama.ParseKafkaVersion(c.Version)
}
