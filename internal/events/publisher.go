// Package events publishes domain events produced by completed sales.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"pos-backend/internal/config"
	"pos-backend/internal/fulfillment"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

const (
	BatchTimeout = 50 * time.Millisecond
	BatchSize    = 100
)

// SaleCompleted is emitted once a sale and all of its deductions are committed.
type SaleCompleted struct {
	Reference  uuid.UUID                     `json:"reference"`
	CompanyID  uint                          `json:"company_id"`
	UserID     uint                          `json:"user_id"`
	Method     string                        `json:"payment_method"`
	Total      decimal.Decimal               `json:"total"`
	AmountCash decimal.Decimal               `json:"amount_cash"`
	AmountCard decimal.Decimal               `json:"amount_card"`
	Decrements []fulfillment.DecrementRecord `json:"decrements"`
	OccurredAt time.Time                     `json:"occurred_at"`
}

type Publisher interface {
	PublishSaleCompleted(ctx context.Context, e SaleCompleted) error
	Close() error
}

// Producer is the slice of a kafka writer the publisher needs.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	producer Producer
	log      *zap.Logger
}

func NewKafkaPublisher(producer Producer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, log: log}
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// log-only publisher otherwise.
func NewPublisher(cfg *config.Config, log *zap.Logger) (Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("no kafka brokers configured, sale events will only be logged")
		return NewLogPublisher(log), nil
	}

	writer, err := otelkafka.NewWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.SaleEventsTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: BatchTimeout,
		BatchSize:    BatchSize,
	},
		otelkafka.WithTracerProvider(otel.GetTracerProvider()),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(cfg.SaleEventsTopic),
			attribute.String("messaging.kafka.client_id", config.ServiceName),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka writer: %w", err)
	}
	return NewKafkaPublisher(writer, log), nil
}

func (p *KafkaPublisher) PublishSaleCompleted(ctx context.Context, e SaleCompleted) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode sale event: %w", err)
	}

	msg := kafka.Message{
		// one partition per company keeps its sales in order
		Key:   []byte(strconv.FormatUint(uint64(e.CompanyID), 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("SaleCompleted")},
		},
	}
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		p.log.Error("failed to publish sale event",
			zap.String("reference", e.Reference.String()),
			zap.Uint("company_id", e.CompanyID),
			zap.Error(err),
		)
		return err
	}

	p.log.Info("sale event published",
		zap.String("reference", e.Reference.String()),
		zap.Uint("company_id", e.CompanyID),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishSaleCompleted(_ context.Context, e SaleCompleted) error {
	p.log.Info("sale completed",
		zap.String("reference", e.Reference.String()),
		zap.Uint("company_id", e.CompanyID),
		zap.String("total", e.Total.StringFixed(2)),
		zap.String("method", e.Method),
		zap.Int("decrements", len(e.Decrements)),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
