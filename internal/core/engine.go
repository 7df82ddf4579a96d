// Package core runs the deterministic command engine: decode, dedup,
// authorize, apply, hash, emit. Everything in this package executes on a
// single goroutine; determinism comes from the serial model and from
// time advancing only through the tick operation.
package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CertLedger/internal/catalog"
	"CertLedger/internal/certs"
	"CertLedger/internal/errcode"
	"CertLedger/internal/event"
	"CertLedger/internal/ledger"
	"CertLedger/internal/math"
	"CertLedger/internal/observability"
	"CertLedger/internal/settlement"
	"CertLedger/internal/store"
)

// Command is one inbound, signed operation: the upstream idempotency id,
// the signer's four-word public key, and the flat parameter words.
type Command struct {
	ID     uuid.UUID
	PKey   [4]uint64
	Params []uint64
}

// Output is what the engine emits per applied command: the event
// envelope plus the raw command for replay persistence.
type Output struct {
	Envelope *event.Envelope
	Command  *Command
}

// Config carries the static engine parameters.
type Config struct {
	// AdminKey is the four-word privileged public identity.
	AdminKey [4]uint64

	// SettlementDestination is the fixed external address privileged
	// withdrawals pay to.
	SettlementDestination [3]uint64

	// DedupCapacity bounds the in-memory idempotency LRU.
	DedupCapacity int
}

// Engine is the single-threaded deterministic core.
type Engine struct {
	cfg      Config
	adminID  ledger.AccountID
	store    *store.MemStore
	global   *ledger.GlobalState
	accounts *ledger.Accounts
	catalog  *catalog.Catalog
	certs    *certs.Manager
	hasher   *StateHasher
	dedup    *Deduper
	pending  []settlement.Instruction
	metrics  *observability.Metrics
	log      zerolog.Logger

	persistChan    chan<- Output
	projectionChan chan<- Output
	settleChan     chan<- []settlement.Instruction
}

func NewEngine(
	cfg Config,
	persistChan, projectionChan chan<- Output,
	settleChan chan<- []settlement.Instruction,
	db DBDeduper,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Engine {
	s := store.NewMemStore()
	cat := catalog.NewCatalog(s)
	if cfg.DedupCapacity <= 0 {
		cfg.DedupCapacity = 1_000_000
	}

	return &Engine{
		cfg:            cfg,
		adminID:        ledger.DeriveAccountID(cfg.AdminKey),
		store:          s,
		global:         ledger.NewGlobalState(),
		accounts:       ledger.NewAccounts(s),
		catalog:        cat,
		certs:          certs.NewManager(s, cat),
		hasher:         NewStateHasher(),
		dedup:          NewDeduper(cfg.DedupCapacity, db),
		metrics:        metrics,
		log:            log,
		persistChan:    persistChan,
		projectionChan: projectionChan,
		settleChan:     settleChan,
	}
}

// Process runs one command through the full pipeline. The returned code
// is the operation's result; an error is returned only for undecodable
// input. Rejected commands leave no visible state change.
func (e *Engine) Process(cmd *Command) (errcode.Code, error) {
	return e.process(cmd, false)
}

// Replay re-applies a command from the event log during startup
// recovery. Identical to Process except that dedup is skipped and
// nothing is re-emitted downstream.
func (e *Engine) Replay(cmd *Command) (errcode.Code, error) {
	return e.process(cmd, true)
}

func (e *Engine) process(cmd *Command, replay bool) (errcode.Code, error) {
	start := time.Now()

	op, nonce, err := DecodeOperation(cmd.Params)
	if err != nil {
		if e.metrics != nil {
			e.metrics.OpsRejected.WithLabelValues("Unknown", errcode.InvalidCommand.String()).Inc()
		}
		return errcode.InvalidCommand, fmt.Errorf("decode command %s: %w", cmd.ID, err)
	}
	kind := op.Kind()

	if !replay && e.dedup.IsDuplicate(cmd.ID) {
		if e.metrics != nil {
			e.metrics.IdempotencyDuplicates.WithLabelValues("lru").Inc()
		}
		e.log.Debug().Stringer("command_id", cmd.ID).Stringer("kind", kind).Msg("duplicate command skipped")
		return errcode.OK, nil
	}

	actor := ledger.DeriveAccountID(cmd.PKey)

	var payload event.Payload
	if op.Privileged() && cmd.PKey != e.cfg.AdminKey {
		err = errcode.Unauthorized
	} else {
		pendingBefore := len(e.pending)
		payload, err = e.apply(op, cmd.PKey, actor, nonce)
		if err != nil {
			// A failed handler must not leave instructions queued.
			e.pending = e.pending[:pendingBefore]
		}
	}

	if err != nil {
		code := errcode.FromError(err)
		if e.metrics != nil {
			e.metrics.OpsRejected.WithLabelValues(kind.String(), code.String()).Inc()
		}
		e.log.Debug().
			Stringer("command_id", cmd.ID).
			Stringer("kind", kind).
			Str("actor", actor.String()).
			Str("code", code.String()).
			Msg("command rejected")
		return code, nil
	}

	// The tick operation advances time but is not itself counted.
	if kind != KindTick {
		e.global.TxSize++
		e.global.TxCounter++
	}
	eventID := e.global.EventID()
	e.stampPending(eventID)

	envelope := &event.Envelope{
		EventID:   eventID,
		Tick:      e.global.Tick,
		TxCounter: e.global.TxCounter,
		CommandID: cmd.ID,
		Actor:     actor,
		Type:      payload.Type(),
		Code:      errcode.OK,
		Payload:   payload.Words(),
		PrevHash:  e.hasher.GetPrevHash(),
	}

	hashStart := time.Now()
	envelope.StateHash = e.hasher.ComputeHash(eventID, e.stateDigest(envelope))
	if e.metrics != nil {
		e.metrics.StateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	ledger.SaveGlobal(e.store, e.global)

	output := Output{Envelope: envelope, Command: cmd}
	if !replay {
		// Persistence: blocking send; the engine stalls until the
		// persistence worker drains, so no event is ever lost.
		e.persistChan <- output

		// Projections: non-blocking send with drop. Projection workers
		// rebuild from the event log when they fall behind.
		select {
		case e.projectionChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.Inc()
			}
		}
	}
	e.dedup.MarkProcessed(cmd.ID)

	e.maybeFlushSettlements(kind, replay)

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(kind.String()).Inc()
		e.metrics.OpDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
		e.metrics.CoreEventID.Set(float64(eventID))
		e.metrics.CurrentTick.Set(float64(e.global.Tick))
		e.metrics.TotalFunds.Set(float64(e.global.TotalFunds))
		e.metrics.TotalInterestPaid.Set(float64(e.global.TotalInterestPaid))
		e.metrics.TotalWithdrawn.Set(float64(e.global.TotalWithdrawn))
		e.metrics.ReserveRatio.Set(float64(e.global.ReserveRatio))
	}

	return errcode.OK, nil
}

// apply dispatches to the kind-specific handler. Handlers validate
// before mutating: every error return leaves accounts, certificates and
// the global state untouched (in-memory account copies are simply
// discarded on failure, they persist only through Save).
func (e *Engine) apply(op Operation, pkey [4]uint64, actor ledger.AccountID, nonce uint64) (event.Payload, error) {
	switch op.(type) {
	case Tick:
		e.global.Tick++
		return &event.Ticked{Tick: e.global.Tick}, nil

	case InstallAccount:
		if _, err := e.accounts.Create(actor); err != nil {
			return nil, err
		}
		e.global.AccountCount++
		return &event.AccountInstalled{Owner: actor, AccountCount: e.global.AccountCount}, nil
	}

	// Every remaining kind acts on the signer's installed account and
	// consumes a nonce. A privileged identity without an account is a
	// deployment contract violation, not user error.
	acct, ok := e.accounts.Load(actor)
	if !ok {
		if op.Privileged() {
			panic(fmt.Sprintf("privileged account %s not installed", actor))
		}
		return nil, errcode.AccountNotFound
	}
	if acct.Nonce != nonce {
		return nil, errcode.InvalidNonce
	}
	acct.Nonce++

	switch o := op.(type) {
	case Withdraw:
		amount := o.Amount()
		newTotal, err := math.Sub(e.global.TotalFunds, amount)
		if err != nil {
			return nil, err
		}
		if err := acct.SpendIdle(amount); err != nil {
			return nil, err
		}
		e.global.TotalFunds = newTotal
		dest := destinationWords(o.Data)
		e.queueSettlement(amount, dest, settlement.TokenFunds)
		e.accounts.Save(acct)
		return &event.Withdrawn{
			Owner:       actor,
			Amount:      amount,
			NewBalance:  acct.IdleFunds,
			Destination: dest,
		}, nil

	case WithdrawPoints:
		amount := o.Amount()
		dest := destinationWords(o.Data)

		if pkey == e.cfg.AdminKey {
			// Mint path: the privileged identity pays out without
			// burning anything.
			e.queueSettlement(amount, dest, settlement.TokenPoints)
			e.accounts.Save(acct)
			return &event.PointsWithdrawn{
				Owner:       actor,
				Amount:      amount,
				NewBalance:  acct.Points,
				Destination: dest,
				Minted:      true,
			}, nil
		}

		if amount == 0 {
			return nil, errcode.InvalidPointsAmount
		}
		if amount < ledger.MinPointsWithdrawal {
			return nil, errcode.PointsAmountTooSmall
		}
		required, err := math.Mul(amount, ledger.PointsDivisor)
		if err != nil {
			return nil, err
		}
		if err := acct.SpendPoints(required); err != nil {
			return nil, err
		}
		e.queueSettlement(amount, dest, settlement.TokenPoints)
		e.accounts.Save(acct)
		return &event.PointsWithdrawn{
			Owner:       actor,
			Amount:      amount,
			PointsBurnt: required,
			NewBalance:  acct.Points,
			Destination: dest,
		}, nil

	case Deposit:
		target := acct
		if o.Target != actor {
			target, ok = e.accounts.Load(o.Target)
			if !ok {
				return nil, errcode.AccountNotFound
			}
		}
		if o.Amount == 0 {
			return nil, errcode.InvalidPrincipalAmount
		}
		newTotal, err := math.Add(e.global.TotalFunds, o.Amount)
		if err != nil {
			return nil, err
		}
		if err := target.AddIdle(o.Amount); err != nil {
			return nil, err
		}
		e.global.TotalFunds = newTotal
		e.accounts.Save(target)
		if target != acct {
			e.accounts.Save(acct)
		}
		return &event.Deposited{Target: o.Target, Amount: o.Amount, NewBalance: target.IdleFunds}, nil

	case CreateProductType:
		id, err := e.catalog.Create(e.global, o.DurationTicks, o.RateBasisPoints, o.MinAmount, o.Active)
		if err != nil {
			return nil, err
		}
		e.accounts.Save(acct)
		return &event.ProductCreated{
			ProductTypeID:   id,
			DurationTicks:   o.DurationTicks,
			RateBasisPoints: o.RateBasisPoints,
			MinAmount:       o.MinAmount,
			Active:          o.Active,
		}, nil

	case ModifyProductType:
		if err := e.catalog.Modify(o.ProductTypeID, o.DurationTicks, o.RateBasisPoints, o.MinAmount, o.Active); err != nil {
			return nil, err
		}
		e.accounts.Save(acct)
		return &event.ProductModified{
			ProductTypeID:   o.ProductTypeID,
			DurationTicks:   o.DurationTicks,
			RateBasisPoints: o.RateBasisPoints,
			MinAmount:       o.MinAmount,
			Active:          o.Active,
		}, nil

	case PurchaseCertificate:
		cert, err := e.certs.Purchase(e.global, acct, o.ProductTypeID, o.Amount)
		if err != nil {
			return nil, err
		}
		e.accounts.Save(acct)
		return &event.CertificatePurchased{
			Owner:         actor,
			CertificateID: cert.ID,
			ProductTypeID: cert.ProductTypeID,
			Principal:     cert.Principal,
			MaturityTick:  cert.MaturityTick,
			RateLocked:    cert.RateBasisPoints,
			Recharge:      o.ProductTypeID == catalog.RechargeProductID,
		}, nil

	case ClaimInterest:
		paid, cert, err := e.certs.ClaimInterest(e.global, acct, o.CertificateID)
		if err != nil {
			return nil, err
		}
		e.accounts.Save(acct)
		return &event.InterestClaimed{
			Owner:           actor,
			CertificateID:   cert.ID,
			Amount:          paid,
			InterestClaimed: cert.InterestClaimed,
		}, nil

	case RedeemPrincipal:
		principal, cert, err := e.certs.RedeemPrincipal(e.global, acct, o.CertificateID)
		if err != nil {
			return nil, err
		}
		e.accounts.Save(acct)
		return &event.PrincipalRedeemed{
			Owner:         actor,
			CertificateID: cert.ID,
			Principal:     principal,
		}, nil

	case AdminWithdraw:
		if o.Amount == 0 {
			return nil, errcode.InvalidPrincipalAmount
		}
		available, err := e.global.AvailableForAdminWithdrawal()
		if err != nil {
			return nil, err
		}
		if o.Amount > available {
			return nil, errcode.InsufficientBalance
		}
		newWithdrawn, err := math.Add(e.global.TotalWithdrawn, o.Amount)
		if err != nil {
			return nil, err
		}
		e.global.TotalWithdrawn = newWithdrawn
		e.queueSettlement(o.Amount, e.cfg.SettlementDestination, settlement.TokenFunds)
		e.accounts.Save(acct)
		remaining, _ := e.global.AvailableForAdminWithdrawal()
		return &event.AdminWithdrawn{
			Amount:         o.Amount,
			Destination:    e.cfg.SettlementDestination,
			TotalWithdrawn: newWithdrawn,
			Remaining:      remaining,
		}, nil

	case SetReserveRatio:
		old := e.global.ReserveRatio
		if err := e.global.SetReserveRatio(o.Ratio); err != nil {
			return nil, err
		}
		e.accounts.Save(acct)
		return &event.ReserveRatioChanged{OldRatio: old, NewRatio: o.Ratio}, nil

	default:
		return nil, errcode.InvalidCommand
	}
}

// destinationWords extracts the external address from the withdraw wire
// layout: the first four address bytes sit above the 32-bit amount in
// word 0.
func destinationWords(data [3]uint64) [3]uint64 {
	return [3]uint64{data[0] >> 32, data[1], data[2]}
}

func (e *Engine) queueSettlement(amount uint64, dest [3]uint64, token uint64) {
	e.pending = append(e.pending, settlement.Instruction{
		Amount:        amount,
		AddressFirst:  dest[0],
		AddressMiddle: dest[1],
		AddressLast:   dest[2],
		Token:         token,
	})
	if e.metrics != nil {
		e.metrics.SettlementInstructions.Inc()
	}
}

// stampPending backfills the event id on instructions queued by the
// current operation; the id is only known after the tx counter advances.
func (e *Engine) stampPending(eventID uint64) {
	for i := range e.pending {
		if e.pending[i].EventID == 0 {
			e.pending[i].EventID = eventID
		}
	}
}

// maybeFlushSettlements emits the pending batch on the flush cadence:
// every FlushIntervalTicks ticks, or once enough operations or
// instructions have accumulated. During replay the batch is discarded;
// replayed withdrawals were settled in the original run.
func (e *Engine) maybeFlushSettlements(kind Kind, replay bool) {
	onTickBoundary := kind == KindTick && e.global.Tick%ledger.FlushIntervalTicks == 0
	if !onTickBoundary && e.global.TxSize < ledger.FlushMaxPending && len(e.pending) <= ledger.FlushMaxPending {
		return
	}

	e.global.TxSize = 0
	ledger.SaveGlobal(e.store, e.global)

	if len(e.pending) == 0 {
		return
	}
	batch := e.pending
	e.pending = nil

	if replay || e.settleChan == nil {
		return
	}
	// Blocking send: settlement instructions must not be lost.
	e.settleChan <- batch
	if e.metrics != nil {
		e.metrics.SettlementFlushes.Inc()
	}
	e.log.Info().Int("instructions", len(batch)).Msg("settlement batch flushed")
}

// stateDigest builds the canonical bytes hashed into the state chain:
// the global state words, the event type, and the payload words.
func (e *Engine) stateDigest(env *event.Envelope) []byte {
	words := e.global.ToWords()
	digest := make([]byte, 0, (len(words)+len(env.Payload)+1)*8)
	for _, w := range words {
		digest = appendUint64LE(digest, w)
	}
	digest = appendUint64LE(digest, uint64(env.Type))
	for _, w := range env.Payload {
		digest = appendUint64LE(digest, w)
	}
	return digest
}

func appendUint64LE(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// --- Snapshot & startup ---

// SnapshotState is the serializable in-memory state for restore.
type SnapshotState struct {
	EventID      uint64
	Tick         uint64
	StateHash    [32]byte
	Words        map[string][]uint64
	Pending      []settlement.Instruction
	ProcessedIDs []string
}

// CreateSnapshotState captures the current in-memory state.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		EventID:      e.global.EventID(),
		Tick:         e.global.Tick,
		StateHash:    e.hasher.GetPrevHash(),
		Words:        e.store.Export(),
		Pending:      append([]settlement.Instruction(nil), e.pending...),
		ProcessedIDs: e.dedup.Keys(),
	}
}

// RestoreFromSnapshot loads a snapshot image back into the engine.
// Events past the snapshot watermark are then re-applied via Replay.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) error {
	if err := e.store.Import(snap.Words); err != nil {
		return fmt.Errorf("import snapshot words: %w", err)
	}
	g, err := ledger.LoadGlobal(e.store)
	if err != nil {
		return fmt.Errorf("load global from snapshot: %w", err)
	}
	e.global = g
	e.hasher.SetPrevHash(snap.StateHash)
	e.pending = append([]settlement.Instruction(nil), snap.Pending...)
	e.dedup.Warm(snap.ProcessedIDs)
	return nil
}

// EventID returns the last assigned event id.
func (e *Engine) EventID() uint64 {
	return e.global.EventID()
}

// StateHash returns the current chain tip.
func (e *Engine) StateHash() [32]byte {
	return e.hasher.GetPrevHash()
}

// GlobalSnapshot returns a copy of the global state for read-only
// inspection (stats endpoint, shutdown logging).
func (e *Engine) GlobalSnapshot() ledger.GlobalState {
	return *e.global
}
