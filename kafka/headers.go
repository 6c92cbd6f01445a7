package kafka

import "github.com/IBM/sarama"

// producerHeaderCarrier implements the TextMapCarrier interface for Kafka headers (for producer)
type producerHeaderCarrier []sarama.RecordHeader

func (c producerHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *producerHeaderCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{
		Key:   []byte(key),
		Value: []byte(value),
	})
}

func (c producerHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}

// ConsumerHeaderCarrier implements the TextMapCarrier interface for Kafka headers (for consumer)
type ConsumerHeaderCarrier []*sarama.RecordHeader

func (c ConsumerHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c ConsumerHeaderCarrier) Set(key, value string) {
	// Not needed for extraction
}

func (c ConsumerHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
