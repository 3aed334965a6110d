//go:build integration

package testutil

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

var reUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// UniqueName — уникальное имя топика/группы для теста.
func UniqueName(t *testing.T, prefix string) string {
	t.Helper()
	name := reUnsafe.ReplaceAllString(t.Name(), "-")
	return fmt.Sprintf("%s-%s-%d", prefix, strings.ToLower(name), time.Now().UnixNano())
}

// EnsureTopic — создаёт топик с заданным числом партиций (существующий — не ошибка)
// и ждёт, пока он появится в метаданных.
func EnsureTopic(ctx context.Context, broker, topic string, partitions int) error {
	client := &kafka.Client{Addr: kafka.TCP(broker), Timeout: 10 * time.Second}

	resp, err := client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{Topic: topic, NumPartitions: partitions, ReplicationFactor: 1}},
	})
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if err := resp.Errors[topic]; err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}

	for {
		meta, err := client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
		if err == nil && len(meta.Topics) == 1 && meta.Topics[0].Error == nil && len(meta.Topics[0].Partitions) == partitions {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("topic %s not ready: %w", topic, ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}
}
