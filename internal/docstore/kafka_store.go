package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"lvimport/internal/model"
)

// KafkaStore writes documents to a compacted topic keyed by document key.
// Each batch is one Kafka transaction, so consumers reading with
// isolation.level=read_committed see a batch entirely or not at all.
// Messages carry the full document; compaction keeps the latest per key.
type KafkaStore struct {
	producer txProducer
	topic    string
	flushMS  int
}

// txProducer abstracts *ck.Producer for testability.
type txProducer interface {
	BeginTransaction() error
	Produce(msg *ck.Message, deliveryChan chan ck.Event) error
	Flush(timeoutMs int) int
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	Close()
}

// NewKafkaStore creates a transactional producer for topic.
func NewKafkaStore(ctx context.Context, bootstrap, topic, txID string) (*KafkaStore, error) {
	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
		"transactional.id":   txID,
	})
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("init tx: %w", err)
	}
	return &KafkaStore{producer: p, topic: topic, flushMS: 15000}, nil
}

// NewKafkaStoreWith is only for tests to inject a fake producer.
func NewKafkaStoreWith(p txProducer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic, flushMS: 1000}
}

type kafkaDocument struct {
	Key string         `json:"key"`
	Doc map[string]any `json:"doc"`
}

func (k *KafkaStore) UpsertBatch(ctx context.Context, ops []model.Op) error {
	if err := checkBatch(ctx, ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	if err := k.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	abort := func(cause error) error {
		_ = k.producer.AbortTransaction(context.Background())
		return cause
	}
	now := Now()
	for _, op := range ops {
		b, err := json.Marshal(kafkaDocument{Key: op.Key, Doc: op.Doc.Resolve(now)})
		if err != nil {
			return abort(fmt.Errorf("marshal %s: %w", op.Key, err))
		}
		msg := &ck.Message{
			TopicPartition: ck.TopicPartition{Topic: &k.topic, Partition: ck.PartitionAny},
			Key:            []byte(op.Key),
			Value:          b,
		}
		if err := k.producer.Produce(msg, nil); err != nil {
			return abort(fmt.Errorf("produce %s: %w", op.Key, err))
		}
	}
	if err := ctx.Err(); err != nil {
		return abort(err)
	}
	if remaining := k.producer.Flush(k.flushMS); remaining > 0 {
		return abort(fmt.Errorf("flush: %d messages undelivered", remaining))
	}
	if err := k.producer.CommitTransaction(ctx); err != nil {
		return abort(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (k *KafkaStore) Close() error {
	k.producer.Close()
	return nil
}
