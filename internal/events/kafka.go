package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaPublisher publica eventos em um tópico Kafka, chaveados pelo id da
// demanda para manter a ordem por demanda.
type KafkaPublisher struct {
	client producer
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher conecta aos brokers informados.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) (*KafkaPublisher, error) {
	seeds := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			seeds = append(seeds, b)
		}
	}
	if len(seeds) == 0 {
		return nil, errors.New("kafka brokers não informados")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka topic não informado")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("servicos-publicos"),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return newKafkaPublisher(client, topic, logger), nil
}

func newKafkaPublisher(client producer, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		client: client,
		topic:  topic,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Publish enfileira o evento. A entrega é assíncrona; falhas aparecem no log.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("serializar evento: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(evt.DemandaID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(evt.Type)},
		},
	}
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn().Err(err).
				Str("type", evt.Type).
				Str("demanda_id", evt.DemandaID).
				Msg("falha ao publicar evento")
		}
	})
	return nil
}

// Close aguarda os envios pendentes e encerra o cliente.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
