package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// CommandStream holds inbound signed commands.
	CommandStream  = "CERT_COMMANDS"
	CommandSubject = "certledger.commands.>"
	consumerName   = "certledger-core"
)

// RawCommand is an inbound message pulled off JetStream, not yet
// parsed. Ack after the core has fully processed it; Nak on transient
// failure so JetStream redelivers.
type RawCommand struct {
	Subject  string
	Data     []byte
	Received time.Time
	AckFunc  func()
	NakFunc  func()
}

// NATSSubscriber feeds inbound commands from JetStream into the
// command channel. There is exactly one durable consumer: commands must
// reach the core in stream order.
type NATSSubscriber struct {
	js          jetstream.JetStream
	commandChan chan<- RawCommand
	consumer    jetstream.ConsumeContext
	log         zerolog.Logger
}

func NewNATSSubscriber(js jetstream.JetStream, commandChan chan<- RawCommand, log zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:          js,
		commandChan: commandChan,
		log:         log,
	}
}

// Subscribe creates the durable consumer and starts delivery. Explicit
// ack with redelivery; duplicates from redelivery are absorbed by the
// core's idempotency layer.
func (ns *NATSSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, CommandStream, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: CommandSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawCommand{
			Subject:  msg.Subject(),
			Data:     msg.Data(),
			Received: time.Now(),
			AckFunc:  func() { msg.Ack() },
			NakFunc:  func() { msg.Nak() },
		}

		select {
		case ns.commandChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}

	ns.consumer = cc
	ns.log.Info().Str("subject", CommandSubject).Str("consumer", consumerName).Msg("subscribed")
	return nil
}

// Stop halts delivery. In-flight messages are redelivered after the
// ack deadline.
func (ns *NATSSubscriber) Stop() {
	if ns.consumer != nil {
		ns.consumer.Stop()
	}
	ns.log.Info().Msg("nats subscriber stopped")
}

// EnsureStreams creates the command stream if it does not exist.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      CommandStream,
		Subjects:  []string{CommandSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", CommandStream, err)
	}
	log.Info().Str("stream", CommandStream).Msg("ensured stream")
	return nil
}

// ConnectNATS establishes the NATS connection and JetStream context.
// Reconnects forever; the ledger must ride out broker restarts.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
