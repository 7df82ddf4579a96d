// Package settlement carries externally-payable instructions from the
// core to the settlement publisher. Instructions accumulate in the
// engine and leave in batches on the flush cadence.
package settlement

// Token tags. Funds settle as token 0; points use a distinct tag so the
// downstream payer routes them through the points channel.
const (
	TokenFunds  uint64 = 0
	TokenPoints uint64 = 2 << 8
)

// Instruction is one externally-payable withdrawal. The destination
// address is carried as three words: the first four bytes in
// AddressFirst, then two eight-byte words.
type Instruction struct {
	EventID       uint64 `json:"event_id"`
	Amount        uint64 `json:"amount"`
	AddressFirst  uint64 `json:"address_first"`
	AddressMiddle uint64 `json:"address_middle"`
	AddressLast   uint64 `json:"address_last"`
	Token         uint64 `json:"token"`
}
