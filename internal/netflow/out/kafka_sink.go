package out

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type KafkaSink struct {
	topic string
	p     sarama.SyncProducer
}

// NewKafkaSink builds a sync producer for the transfer firehose. Sarama
// handles its own retries; an emit failure after that is surfaced to the
// caller, which treats it as per-event recoverable.
func NewKafkaSink(brokersCSV, topic string) (*KafkaSink, error) {
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic empty")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond

	// SyncProducer must have Return.Successes=true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Version = sarama.V2_1_0_0

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{topic: topic, p: p}, nil
}

func (s *KafkaSink) Close() error {
	if s.p != nil {
		return s.p.Close()
	}
	return nil
}

func (s *KafkaSink) Emit(ctx context.Context, typ string, v any) error {
	// SyncProducer doesn't take a ctx; check before blocking on the send.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	env := Envelope{
		Type: typ,
		TS:   time.Now().UnixMilli(),
		Data: data,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := s.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka emit failed: %w", err)
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
