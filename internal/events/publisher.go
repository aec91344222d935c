// Package events publishes stored localities to a Kafka change feed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per locality to the change feed topic.
// It implements ingest.Publisher.
type Publisher struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// LocalityChanged is the message body.
type LocalityChanged struct {
	ID               uint      `json:"id"`
	IBGE             *string   `json:"ibge"`
	UF               string    `json:"uf"`
	Municipality     string    `json:"municipio"`
	Community        string    `json:"nome_comunidade"`
	CommunityType    *string   `json:"tipo_comunidade"`
	Households       *int      `json:"domicilios"`
	TotalConnections *int      `json:"total_ligacoes"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	BasinID          *uint     `json:"calha_rio_id"`
	Source           string    `json:"fonte_dados"`
	PublishedAt      time.Time `json:"published_at"`
}

// Publish writes locs in a single batch. Messages are keyed by natural key
// so every version of a locality lands on the same partition.
func (p *Publisher) Publish(ctx context.Context, locs []localidades.Locality) error {
	if len(locs) == 0 {
		return nil
	}
	now := p.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(locs))
	for i := range locs {
		msg, err := serializeToMessage(locs[i], now)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d localities: %w", len(msgs), err)
	}
	p.logger.Debug("localities published", "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func messageKey(k localidades.NaturalKey) []byte {
	return []byte(k.Source.Code() + "|" + k.Municipality + "|" + k.Community)
}

func serializeToMessage(l localidades.Locality, at time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(LocalityChanged{
		ID:               l.ID,
		IBGE:             l.IBGE,
		UF:               l.UF,
		Municipality:     l.Municipality,
		Community:        l.Community,
		CommunityType:    l.CommunityType,
		Households:       l.Households,
		TotalConnections: l.TotalConnections,
		Latitude:         l.Latitude,
		Longitude:        l.Longitude,
		BasinID:          l.BasinID,
		Source:           string(l.Source),
		PublishedAt:      at,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize locality %d: %w", l.ID, err)
	}
	return kafkago.Message{
		Key:   messageKey(l.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(l.Source.Code())},
			{Key: "locality_id", Value: []byte(strconv.FormatUint(uint64(l.ID), 10))},
			{Key: "published_at", Value: []byte(at.Format(time.RFC3339))},
		},
	}, nil
}
