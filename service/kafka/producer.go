package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/affanraza84/Chatting-App/tools/errs"
)

// BuildBaseConfig maps Config onto a sarama producer config. Keys pick the
// partition, so one user's events stay ordered.
func BuildBaseConfig(c Config) (*sarama.Config, error) {
	c.norm()
	v, err := c.version()
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("kafka version", "version", c.Version)
	}
	cfg := sarama.NewConfig()
	cfg.Version = v
	cfg.ClientID = c.ClientID

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.Retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	case "gzip":
		cfg.Producer.Compression = sarama.CompressionGZIP
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, cfg.Validate()
}

// NewSyncProducer connects to the brokers, creates the sink topics when
// asked to, and returns a producer that owns the client.
func NewSyncProducer(c Config) (sarama.SyncProducer, error) {
	if len(c.Brokers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("kafka brokers missing")
	}
	c.norm()
	cfg, err := BuildBaseConfig(c)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(c.Brokers, cfg)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("kafka client", "brokers", c.Brokers, "err", err.Error())
	}
	if c.EnsureTopics {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			_ = client.Close()
			return nil, errs.WrapMsg(err, "kafka admin")
		}
		// admin.Close would close the shared client
		if err := EnsureTopics(admin, Topics(c.TopicPrefix), c.Partitions, c.ReplicationFactor); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errs.WrapMsg(err, "kafka producer")
	}
	return &ownedProducer{SyncProducer: p, client: client}, nil
}

// ownedProducer closes the client it was built from.
type ownedProducer struct {
	sarama.SyncProducer
	client sarama.Client
}

func (p *ownedProducer) Close() error {
	err := p.SyncProducer.Close()
	if cerr := p.client.Close(); err == nil && cerr != sarama.ErrClosedClient {
		err = cerr
	}
	return err
}
