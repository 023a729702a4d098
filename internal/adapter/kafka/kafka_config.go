package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

type GroupConfig struct {
	Brokers  []string
	GroupID  string
	Version  string // e.g. "2.6.0"; empty keeps V2_6_0_0
	ClientID string
	// Oldest replays the topic from the beginning for a new group.
	Oldest bool
}

func newSaramaConfig(gc GroupConfig) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0
	if gc.Version != "" {
		v, err := sarama.ParseKafkaVersion(gc.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka version: %w", err)
		}
		cfg.Version = v
	}
	if gc.ClientID != "" {
		cfg.ClientID = gc.ClientID
	}
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if gc.Oldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	cfg.Consumer.Return.Errors = true
	cfg.Net.DialTimeout = 5 * time.Second
	return cfg, cfg.Validate()
}

func NewGroup(gc GroupConfig) (sarama.ConsumerGroup, error) {
	cfg, err := newSaramaConfig(gc)
	if err != nil {
		return nil, err
	}
	return sarama.NewConsumerGroup(gc.Brokers, gc.GroupID, cfg)
}
