package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/rowmark/rowmark/pkg/cdc"
)

// ServiceBusSink publishes captured rows to an Azure Service Bus queue or
// topic, one message per row.
type ServiceBusSink struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
}

// NewServiceBusSink connects to Service Bus and creates a sender for the
// given queue or topic.
func NewServiceBusSink(connectionString, queueOrTopic string) (*ServiceBusSink, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}
	sender, err := client.NewSender(queueOrTopic, nil)
	if err != nil {
		client.Close(context.Background())
		return nil, fmt.Errorf("failed to create Service Bus sender for %s: %w", queueOrTopic, err)
	}
	return &ServiceBusSink{client: client, sender: sender}, nil
}

// Publish sends one captured row as a JSON message. The table name and
// watermark travel as application properties for broker-side filtering.
func (s *ServiceBusSink) Publish(ctx context.Context, event cdc.RowEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		ApplicationProperties: map[string]any{
			"table":     event.Table,
			"watermark": event.Watermark,
		},
	}
	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to send message for %s: %w", event.Table, err)
	}
	return nil
}

// Close releases the sender and the client.
func (s *ServiceBusSink) Close() error {
	ctx := context.Background()
	senderErr := s.sender.Close(ctx)
	clientErr := s.client.Close(ctx)
	if senderErr != nil {
		return senderErr
	}
	return clientErr
}
