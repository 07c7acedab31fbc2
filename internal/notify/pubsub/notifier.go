// Package pubsub publishes report-created events to a Google Cloud
// Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/tipline/videoreports/internal/report"
)

// Notifier wraps a Pub/Sub topic handle.
type Notifier struct {
	topic *pubsub.Topic
}

// New creates a Notifier for an existing topic handle.
func New(topic *pubsub.Topic) *Notifier {
	return &Notifier{topic: topic}
}

// Connect dials Pub/Sub and verifies the topic exists. The returned
// cleanup flushes pending publishes and closes the client.
func Connect(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Notifier, func(), error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("check pubsub topic %s: %w", topicID, err)
	}
	if !ok {
		_ = client.Close()
		return nil, nil, fmt.Errorf("pubsub topic %s does not exist", topicID)
	}
	cleanup := func() {
		topic.Stop()
		_ = client.Close()
	}
	return New(topic), cleanup, nil
}

// Notify marshals the event to JSON and publishes it, blocking until the
// server acknowledges the message.
func (n *Notifier) Notify(ctx context.Context, event report.CreatedEvent) error {
	if n == nil || n.topic == nil {
		return fmt.Errorf("pubsub notifier is not configured")
	}
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}
	if _, err := n.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish report event: %w", err)
	}
	return nil
}

// buildMessage shapes the event payload. Attributes carry the fields
// subscribers filter on without decoding the body.
func buildMessage(event report.CreatedEvent) (*pubsub.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal report event: %w", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"report_id":       strconv.FormatInt(event.Report.ID, 10),
			"report_category": string(event.Report.Category),
		},
	}, nil
}
