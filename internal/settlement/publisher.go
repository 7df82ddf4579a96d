package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"CertLedger/internal/observability"
)

const (
	// SettlementStream carries flushed instruction batches to the
	// external payout executor.
	SettlementStream  = "CERT_SETTLEMENT"
	SettlementSubject = "certledger.settlement.batch"
)

// Batch is the published wire form of one flush.
type Batch struct {
	Instructions []Instruction `json:"instructions"`
	PublishedAt  time.Time     `json:"published_at"`
}

// Publisher drains flushed settlement batches from the core and
// publishes them to JetStream. Publish failures are retried with
// backoff rather than dropped: an instruction represents money owed.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan []Instruction
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan []Instruction, metrics *observability.Metrics, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run publishes batches until the context is cancelled or the channel
// closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			if err := p.publishWithRetry(ctx, batch); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, instructions []Instruction) error {
	backoff := 100 * time.Millisecond
	for {
		err := p.publish(ctx, instructions)
		if err == nil {
			return nil
		}
		if p.metrics != nil {
			p.metrics.SettlementPublishErrs.Inc()
		}
		p.log.Warn().Err(err).Int("instructions", len(instructions)).Dur("backoff", backoff).Msg("settlement publish failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func (p *Publisher) publish(ctx context.Context, instructions []Instruction) error {
	data, err := json.Marshal(Batch{Instructions: instructions, PublishedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal settlement batch: %w", err)
	}
	_, err = p.js.Publish(ctx, SettlementSubject, data)
	return err
}

// EnsureSettlementStream creates the outbound settlement stream.
func EnsureSettlementStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      SettlementStream,
		Subjects:  []string{SettlementSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", SettlementStream, err)
	}
	log.Info().Str("stream", SettlementStream).Msg("ensured stream")
	return nil
}
