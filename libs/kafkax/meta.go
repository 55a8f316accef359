package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the metadata the CDC connector carries on every outbox message.
// The message key is the aggregate id and doubles as the partition key.
type EventMeta struct {
	EventID       string
	EventType     string
	AggregateType string
	AggregateID   string
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	return EventMeta{
		EventID:       HeaderValue(msg.Headers, "eventId"),
		EventType:     HeaderValue(msg.Headers, "eventType"),
		AggregateType: HeaderValue(msg.Headers, "aggregateType"),
		AggregateID:   string(msg.Key),
	}
}

// Complete reports whether every required header was present.
func (m EventMeta) Complete() bool {
	return m.EventID != "" && m.EventType != "" && m.AggregateType != ""
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
