package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scoreloop/internal/determinism"
	"scoreloop/internal/domain"
	"scoreloop/internal/logging"
	"scoreloop/internal/snapshot"
	"scoreloop/internal/storage"
)

var (
	// ErrInvalidProposal is returned for proposals missing trade or account.
	ErrInvalidProposal = errors.New("invalid proposal")

	// ErrNoRecorder is returned by Record when no decision stream is wired.
	ErrNoRecorder = errors.New("no decision recorder configured")
)

// SnapshotSource yields the current scoreboard snapshot.
type SnapshotSource interface {
	Current(ctx context.Context) (*domain.ScoreboardSnapshot, *domain.SnapshotPointer, error)
}

// Appender appends one record to a stream.
type Appender interface {
	Append(stream string, v any) storage.Result
}

// Proposal is a trade the execution layer wants to take.
type Proposal struct {
	TradeID       string
	ClientTradeID string
	AccountLabel  string
	Key           domain.BucketKey
}

// Engine is the live decision path. Only the canonical policy is wired here.
type Engine struct {
	canonical Policy
	source    SnapshotSource
	store     Appender
	stream    string
	baseSize  float64
	clock     func() time.Time
	log       zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRecorder wires the decision stream Record appends to.
func WithRecorder(store Appender, stream string) EngineOption {
	return func(e *Engine) {
		e.store = store
		e.stream = stream
	}
}

// WithBaseSize sets the caller's base position size.
func WithBaseSize(size float64) EngineOption {
	return func(e *Engine) {
		if size > 0 {
			e.baseSize = size
		}
	}
}

// WithEngineClock overrides the time source.
func WithEngineClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithEngineLogger overrides the component logger.
func WithEngineLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine returns an engine deciding with canonical against source.
func NewEngine(canonical Policy, source SnapshotSource, opts ...EngineOption) *Engine {
	e := &Engine{
		canonical: canonical,
		source:    source,
		baseSize:  1.0,
		clock:     time.Now,
		log:       logging.For("gate"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the canonical policy.
func (e *Engine) Policy() Policy {
	return e.canonical
}

// Decide evaluates a proposal against the current snapshot and returns a
// signed proposed decision. A bucket the snapshot marks as under-sampled is
// blocked whatever the policy would say. A bucket absent from the snapshot
// is decided on zero statistics. With no snapshot committed at all the
// decision carries no snapshot linkage.
func (e *Engine) Decide(ctx context.Context, p Proposal) (domain.DecisionRecord, error) {
	p.TradeID = strings.TrimSpace(p.TradeID)
	p.AccountLabel = strings.TrimSpace(p.AccountLabel)
	if p.TradeID == "" || p.AccountLabel == "" {
		return domain.DecisionRecord{}, fmt.Errorf("%w: trade_id and account_label are required", ErrInvalidProposal)
	}
	p.Key.Symbol = strings.ToUpper(strings.TrimSpace(p.Key.Symbol))
	p.Key.Timeframe = strings.TrimSpace(p.Key.Timeframe)
	p.Key.SetupType = strings.TrimSpace(p.Key.SetupType)

	stats := domain.BucketStats{Key: p.Key}
	var ptr *domain.SnapshotPointer
	found := false
	minN := 0

	snap, cur, err := e.source.Current(ctx)
	switch {
	case err == nil:
		ptr = cur
		minN = snap.MinN
		if s, ok := snap.Lookup(p.Key); ok {
			stats, found = s, true
		}
	case errors.Is(err, snapshot.ErrNoCurrent):
		e.log.Warn().Str("trade_id", p.TradeID).Msg("no current snapshot; deciding on empty bucket")
	default:
		return domain.DecisionRecord{}, fmt.Errorf("read current snapshot: %w", err)
	}

	var v Verdict
	if found && !stats.Sufficient {
		v = Verdict{
			Policy: e.canonical.Name(),
			Code:   domain.CodeInsufficientData,
			Action: domain.ActionBlock,
			Reason: fmt.Sprintf("n=%d below snapshot min_n=%d", stats.N, minN),
		}
	} else {
		v = e.canonical.Decide(stats, e.baseSize)
	}
	rec := domain.DecisionRecord{
		SchemaVersion:  domain.DecisionSchemaProposed,
		EventType:      domain.EventTypeDecision,
		TsMs:           e.clock().UnixMilli(),
		TradeID:        p.TradeID,
		ClientTradeID:  p.ClientTradeID,
		AccountLabel:   p.AccountLabel,
		Symbol:         p.Key.Symbol,
		Timeframe:      p.Key.Timeframe,
		SetupType:      p.Key.SetupType,
		Policy:         e.canonical.Name(),
		PolicyHash:     e.canonical.Hash(),
		DecisionCode:   v.Code,
		Action:         v.Action,
		Allow:          v.Allow(),
		SizeMultiplier: v.SizeMultiplier,
		Reason:         v.Reason,
	}
	if ptr != nil {
		rec.SnapshotID = ptr.Current
		rec.SnapshotHash = ptr.Hash
	}
	if err := determinism.Sign(&rec); err != nil {
		return domain.DecisionRecord{}, err
	}

	e.log.Debug().
		Str("trade_id", rec.TradeID).
		Str("bucket", p.Key.String()).
		Str("decision_code", rec.DecisionCode).
		Float64("size_multiplier", rec.SizeMultiplier).
		Msg("decided")
	return rec, nil
}

// Enforce restamps a proposed decision as the one acted on.
func (e *Engine) Enforce(rec domain.DecisionRecord) (domain.DecisionRecord, error) {
	rec.SchemaVersion = domain.DecisionSchemaEnforced
	rec.TsMs = e.clock().UnixMilli()
	if err := determinism.Sign(&rec); err != nil {
		return domain.DecisionRecord{}, err
	}
	return rec, nil
}

// Record appends rec to the decision stream.
func (e *Engine) Record(rec domain.DecisionRecord) storage.Result {
	if e.store == nil {
		return storage.Failed(domain.KindIOFailure, ErrNoRecorder)
	}
	return e.store.Append(e.stream, rec)
}
