package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
	"go.uber.org/zap"
)

// Publisher is the part of an NSQ producer the notifier needs.
type Publisher interface {
	Publish(topic string, body []byte) error
	Stop()
}

// Nsq publishes every event as JSON to one topic.
type Nsq struct {
	topic    string
	producer Publisher
}

// NewNsq connects a producer to the nsqd at address.
func NewNsq(address, topic string) (*Nsq, error) {
	config := nsq.NewConfig()
	producer, err := nsq.NewProducer(address, config)
	if err != nil {
		return nil, fmt.Errorf("init nsq producer %s: %w", address, err)
	}
	producer.SetLogger(nil, nsq.LogLevelError)
	return &Nsq{topic: topic, producer: producer}, nil
}

// NewNsqWithPublisher wraps an existing publisher.
func NewNsqWithPublisher(p Publisher, topic string) *Nsq {
	return &Nsq{topic: topic, producer: p}
}

func (s *Nsq) Notify(_ context.Context, evt Event) {
	buffer, err := json.Marshal(evt)
	if err != nil {
		zap.L().Warn("marshal event failed",
			zap.String("component", "notifier"),
			zap.String("kind", evt.Kind),
			zap.Error(err))
		return
	}

	if err := s.producer.Publish(s.topic, buffer); err != nil {
		zap.L().Warn("publish event failed",
			zap.String("component", "notifier"),
			zap.String("topic", s.topic),
			zap.String("kind", evt.Kind),
			zap.Error(err))
		return
	}
	zap.L().Debug("event published",
		zap.String("component", "notifier"),
		zap.String("topic", s.topic),
		zap.String("kind", evt.Kind))
}

// Close stops the producer.
func (s *Nsq) Close() {
	if s.producer == nil {
		return
	}
	s.producer.Stop()
}
