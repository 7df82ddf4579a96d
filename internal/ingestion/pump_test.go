package ingestion_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"CertLedger/internal/core"
	"CertLedger/internal/errcode"
	"CertLedger/internal/ingestion"
)

type recordingSink struct {
	commands []*core.Command
	code     errcode.Code
	err      error
}

func (s *recordingSink) Process(cmd *core.Command) (errcode.Code, error) {
	s.commands = append(s.commands, cmd)
	return s.code, s.err
}

func TestPumpProcessesAndAcks(t *testing.T) {
	ch := make(chan ingestion.RawCommand, 2)
	sink := &recordingSink{code: errcode.OK}
	pump := ingestion.NewPump(ch, sink, nil, zerolog.Nop())

	acked := 0
	ch <- ingestion.RawCommand{
		Data:     []byte(`{"command_id":"550e8400-e29b-41d4-a716-446655440000","pkey":["1","2","3","4"],"params":["0"]}`),
		Received: time.Now(),
		AckFunc:  func() { acked++ },
		NakFunc:  func() { t.Error("unexpected nak") },
	}
	close(ch)

	if err := pump.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.commands) != 1 {
		t.Fatalf("processed = %d, want 1", len(sink.commands))
	}
	if acked != 1 {
		t.Errorf("acked = %d, want 1", acked)
	}
}

func TestPumpAcksUnparseable(t *testing.T) {
	ch := make(chan ingestion.RawCommand, 1)
	sink := &recordingSink{}
	pump := ingestion.NewPump(ch, sink, nil, zerolog.Nop())

	acked := 0
	ch <- ingestion.RawCommand{
		Data:     []byte(`not json`),
		Received: time.Now(),
		AckFunc:  func() { acked++ },
		NakFunc:  func() { t.Error("unexpected nak") },
	}
	close(ch)

	if err := pump.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.commands) != 0 {
		t.Errorf("processed = %d, want 0", len(sink.commands))
	}
	if acked != 1 {
		t.Errorf("acked = %d, want 1", acked)
	}
}
