package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"CertLedger/internal/core"
	"CertLedger/internal/errcode"
	"CertLedger/internal/observability"
)

// CommandSink is the processing side of the pump, satisfied by the
// core engine.
type CommandSink interface {
	Process(cmd *core.Command) (errcode.Code, error)
}

// Pump drains raw commands from the subscriber channel, parses them,
// and drives them through the core one at a time. It is the only
// caller of the engine during live operation, which is what keeps the
// core single-threaded.
type Pump struct {
	commandChan <-chan RawCommand
	sink        CommandSink
	metrics     *observability.Metrics
	log         zerolog.Logger
}

func NewPump(commandChan <-chan RawCommand, sink CommandSink, metrics *observability.Metrics, log zerolog.Logger) *Pump {
	return &Pump{
		commandChan: commandChan,
		sink:        sink,
		metrics:     metrics,
		log:         log,
	}
}

// Run processes commands until the context is cancelled or the channel
// closes.
func (p *Pump) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-p.commandChan:
			if !ok {
				return nil
			}
			p.handle(raw)
		}
	}
}

func (p *Pump) handle(raw RawCommand) {
	cmd, err := ParseCommand(raw.Data)
	if err != nil {
		// Unparseable bytes will never parse on redelivery. Ack and
		// drop.
		if p.metrics != nil {
			p.metrics.IngestParseErrs.Inc()
		}
		p.log.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping unparseable command")
		raw.AckFunc()
		return
	}

	code, err := p.sink.Process(cmd)
	if err != nil {
		// Undecodable descriptors are terminal the same way parse
		// failures are.
		p.log.Warn().Err(err).Stringer("command_id", cmd.ID).Msg("dropping undecodable command")
		raw.AckFunc()
		return
	}

	// Rejections are valid outcomes: the command was evaluated and
	// refused. Only infrastructure failures warrant a Nak, and the
	// core reports none through this path.
	_ = code

	if p.metrics != nil && len(cmd.Params) > 0 {
		kind := core.Kind(cmd.Params[0] & 0xff)
		p.metrics.IngestToApply.WithLabelValues(kind.String()).Observe(time.Since(raw.Received).Seconds())
	}
	raw.AckFunc()
}
