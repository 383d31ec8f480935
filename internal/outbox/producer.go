package outbox

import "github.com/segmentio/kafka-go"

// NewKafkaWriter returns a writer shared by every outbox topic. Records carry
// their own topic, and hashing the key keeps each activity on one partition.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: false,
	}
}
