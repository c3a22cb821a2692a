// Package kafka publishes dispatch requests for downstream notification
// delivery. Delivery mechanics (push, SMS, email) are out of scope here;
// consumers of the notifications topic own them.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/coastal-hazard-watch/internal/config"
	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

// Notifier produces dispatch requests to the notifications topic.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the notifications topic. When
// notifications are disabled the returned notifier only logs dispatches,
// so the rest of the pipeline behaves identically either way.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	if !cfg.NotificationsEnabled {
		return &Notifier{logger: logger}
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.NotificationsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// Dispatch serializes and publishes a dispatch request. Messages are keyed
// by location so escalations for one shoreline arrive in order.
func (n *Notifier) Dispatch(ctx context.Context, req domain.DispatchRequest) error {
	if n.writer == nil {
		n.logger.Info("notification dispatch (log only)",
			"dispatch_id", req.ID,
			"location_id", req.LocationID,
			"priority", req.Priority,
			"hazard", req.Prediction.Hazard,
		)
		return nil
	}

	msg, err := serializeDispatch(req)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, msg)
}

func (n *Notifier) Close() error {
	if n.writer == nil {
		return nil
	}
	return n.writer.Close()
}

// serializeDispatch marshals a dispatch request into a Kafka message.
func serializeDispatch(req domain.DispatchRequest) (kafkago.Message, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize dispatch request: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(req.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "priority", Value: []byte(req.Priority)},
			{Key: "hazard", Value: []byte(req.Prediction.Hazard)},
			{Key: "requested_at", Value: []byte(req.RequestedAt.Format(time.RFC3339))},
		},
	}, nil
}
