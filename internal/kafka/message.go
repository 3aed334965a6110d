package kafka

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
)

// codec — JSON-кодек значений на проводе (совместим с encoding/json).
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// noPartition — маркер «партиция не задана» для балансировщика.
const noPartition = -1

// Message — конверт публикуемого сообщения с типизированным значением.
type Message[T any] struct {
	Key       *string
	Partition *int
	Headers   map[string]string
	Value     T
}

// RawMessage — конверт с уже сериализованным значением (UTF-8 JSON).
type RawMessage struct {
	Key       *string
	Partition *int
	Headers   map[string]string
	Value     []byte
}

// ProduceResult — итог публикации. Err заполнен, если брокер вернул ошибку:
// вызывающий код её не получает как error, только для наблюдаемости.
type ProduceResult struct {
	Topic  string
	Sent   int
	Failed int
	Err    error
}

// encodeMessages — сериализует значения в JSON; ключи, партиции и заголовки не меняются.
func encodeMessages[T any](msgs []Message[T]) ([]RawMessage, error) {
	out := make([]RawMessage, 0, len(msgs))
	for i := range msgs {
		raw, err := codec.Marshal(msgs[i].Value)
		if err != nil {
			return nil, fmt.Errorf("encode message #%d: %w", i, err)
		}
		out = append(out, RawMessage{
			Key:       msgs[i].Key,
			Partition: msgs[i].Partition,
			Headers:   msgs[i].Headers,
			Value:     raw,
		})
	}
	return out, nil
}

// toKafkaMessage — конверт -> kafka.Message с топиком.
func (m RawMessage) toKafkaMessage(topic string) kafka.Message {
	km := kafka.Message{
		Topic:     topic,
		Partition: noPartition,
		Value:     m.Value,
		Headers:   toHeaders(m.Headers),
	}
	if m.Key != nil {
		km.Key = []byte(*m.Key)
	}
	if m.Partition != nil {
		km.Partition = *m.Partition
	}
	return km
}

// toHeaders — map -> []kafka.Header.
func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	headers := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

// partitionBalancer — учитывает явно заданную партицию, иначе murmur2 по ключу
// (как у Java-клиента), для сообщений без ключа — случайная партиция.
type partitionBalancer struct {
	fallback kafka.Balancer
}

func newPartitionBalancer() *partitionBalancer {
	return &partitionBalancer{fallback: &kafka.Murmur2Balancer{Consistent: false}}
}

func (b *partitionBalancer) Balance(msg kafka.Message, partitions ...int) int {
	if msg.Partition >= 0 {
		for _, p := range partitions {
			if p == msg.Partition {
				return p
			}
		}
	}
	return b.fallback.Balance(msg, partitions...)
}
