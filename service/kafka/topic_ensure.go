package kafka

import (
	"errors"

	"github.com/Shopify/sarama"
	"github.com/affanraza84/Chatting-App/logger"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"go.uber.org/zap"
)

// TopicAdmin is the slice of sarama.ClusterAdmin used here.
type TopicAdmin interface {
	DescribeTopics(topics []string) ([]*sarama.TopicMetadata, error)
	CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error
}

// EnsureTopics creates the missing topics; existing ones are left alone.
func EnsureTopics(admin TopicAdmin, topics []string, partitions int32, rf int16) error {
	minISR := "1"
	if rf >= 3 {
		minISR = "2"
	}
	for _, t := range topics {
		desc, err := admin.DescribeTopics([]string{t})
		if err == nil && len(desc) == 1 && desc[0].Err == sarama.ErrNoError {
			logger.Debug("[Kafka] topic exists", zap.String("topic", t), zap.Int("partitions", len(desc[0].Partitions)))
			continue
		}
		td := &sarama.TopicDetail{
			NumPartitions:     partitions,
			ReplicationFactor: rf,
			ConfigEntries: map[string]*string{
				"cleanup.policy":                 strPtr("delete"),
				"min.insync.replicas":            strPtr(minISR),
				"unclean.leader.election.enable": strPtr("false"),
				"compression.type":               strPtr("producer"),
			},
		}
		if err := admin.CreateTopic(t, td, false); err != nil {
			var te *sarama.TopicError
			if errors.Is(err, sarama.ErrTopicAlreadyExists) || (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) {
				continue
			}
			return errs.WrapMsg(err, "create topic", "topic", t)
		}
		logger.Info("[Kafka] topic created", zap.String("topic", t), zap.Int32("partitions", partitions), zap.Int16("rf", rf))
	}
	return nil
}

func strPtr(s string) *string { return &s }
