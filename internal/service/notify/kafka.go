package notify

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/config"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
)

// KafkaNotifier publishes action-transition notifications to a Kafka
// topic. Notification delivery is best-effort: a broker outage must
// never block or fail a signal tick.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

type actionNotification struct {
	Asset     string  `json:"asset"`
	Action    string  `json:"action"`
	Previous  string  `json:"previous"`
	Alpha     float64 `json:"alpha"`
	MentionsZ float64 `json:"mentions_z"`
	EMA15     float64 `json:"ema15"`
	Timestamp string  `json:"timestamp"`
}

func NewKafkaNotifier(cfg *config.Config, l *applogger.Logger) (*KafkaNotifier, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Notify.Brokers),
		pkgkafka.WithRequiredAcks(cfg.Notify.RequiredAcks),
		pkgkafka.WithTimeouts(cfg.Notify.WriteTimeout, cfg.Notify.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaNotifier{producer: producer, topic: cfg.Notify.Topic, l: l}, nil
}

// NotifyAction publishes one message per action transition, keyed by
// asset so consumers see per-asset ordering.
func (n *KafkaNotifier) NotifyAction(ctx context.Context, sig *models.Signal, prev models.Action) error {
	msg := actionNotification{
		Asset:     sig.Asset,
		Action:    string(sig.Action),
		Previous:  string(prev),
		Alpha:     sig.Alpha,
		MentionsZ: sig.MentionsZ,
		EMA15:     sig.EMA15,
		Timestamp: sig.Timestamp.UTC().Format(time.RFC3339),
	}
	if err := n.producer.Publish(ctx, n.topic, []byte(sig.Asset), msg); err != nil {
		n.l.Warn("action notification failed",
			applogger.Error(err),
			applogger.String("asset", sig.Asset),
			applogger.String("action", string(sig.Action)),
		)
		return err
	}
	return nil
}

func (n *KafkaNotifier) Close() error { return n.producer.Close() }

// NopNotifier is used when notifications are disabled.
type NopNotifier struct{}

func (NopNotifier) NotifyAction(context.Context, *models.Signal, models.Action) error { return nil }
func (NopNotifier) Close() error                                                      { return nil }
