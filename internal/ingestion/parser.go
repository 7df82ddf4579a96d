package ingestion

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"CertLedger/internal/core"
)

// commandJSON is the inbound wire format. Word values travel as decimal
// strings because JSON numbers cannot carry a full 64-bit range without
// loss.
type commandJSON struct {
	CommandID string   `json:"command_id"`
	PKey      []string `json:"pkey"`
	Params    []string `json:"params"`
}

// ParseCommand converts raw message bytes into a core command. The
// signer key must be exactly four words; params must be non-empty (the
// first word carries the kind and nonce).
func ParseCommand(data []byte) (*core.Command, error) {
	var j commandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}

	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}

	if len(j.PKey) != 4 {
		return nil, fmt.Errorf("parse pkey: want 4 words, got %d", len(j.PKey))
	}
	var pkey [4]uint64
	for i, s := range j.PKey {
		pkey[i], err = parseWord(s)
		if err != nil {
			return nil, fmt.Errorf("parse pkey[%d]: %w", i, err)
		}
	}

	if len(j.Params) == 0 {
		return nil, fmt.Errorf("parse params: empty")
	}
	params := make([]uint64, len(j.Params))
	for i, s := range j.Params {
		params[i], err = parseWord(s)
		if err != nil {
			return nil, fmt.Errorf("parse params[%d]: %w", i, err)
		}
	}

	return &core.Command{ID: id, PKey: pkey, Params: params}, nil
}

func parseWord(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
