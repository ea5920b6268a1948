package join

import (
	"encoding/json"
	"strings"

	"scoreloop/internal/contract"
	"scoreloop/internal/domain"
	"scoreloop/internal/extract"
	"scoreloop/internal/storage"
)

// ReasonInvalidContext marks a setup_context row that failed its contract.
const ReasonInvalidContext = "invalid_setup_context"

// Index maps trade id to its setup context. The first context seen for a
// trade id wins; later ones are counted as duplicates and ignored.
type Index struct {
	contexts map[string]*domain.SetupContext

	Rows    int // setup_context rows considered
	Dupes   int
	Invalid int
	Ignored int // rows of another event type

	Rejects []domain.Reject
}

// BuildIndex indexes setup_context records in stream order.
func BuildIndex(records []storage.Record) *Index {
	ix := &Index{contexts: make(map[string]*domain.SetupContext)}

	for _, rec := range records {
		if et := extract.EventType.String(rec.Raw); et != "" && et != domain.EventTypeSetupContext {
			ix.Ignored++
			continue
		}
		ix.Rows++

		if err := contract.ValidateSetupContext(rec.Raw); err != nil {
			ix.Invalid++
			ix.Rejects = append(ix.Rejects, domain.Reject{
				Reason: ReasonInvalidContext,
				Kind:   domain.KindMalformedRecord,
				Detail: map[string]any{"error": err.Error()},
				Source: domain.RejectSource{Stream: rec.Stream, LineNo: rec.LineNo},
				Row:    json.RawMessage(rec.Raw),
			})
			continue
		}

		sc := contextFromRecord(rec)
		if _, ok := ix.contexts[sc.TradeID]; ok {
			ix.Dupes++
			continue
		}
		ix.contexts[sc.TradeID] = sc
	}
	return ix
}

// Lookup returns the context for tradeID.
func (ix *Index) Lookup(tradeID string) (*domain.SetupContext, bool) {
	sc, ok := ix.contexts[tradeID]
	return sc, ok
}

// Len is the number of distinct trade ids indexed.
func (ix *Index) Len() int {
	return len(ix.contexts)
}

func contextFromRecord(rec storage.Record) *domain.SetupContext {
	sc := &domain.SetupContext{
		TradeID:      extract.TradeID.String(rec.Raw),
		AccountLabel: extract.Account.String(rec.Raw),
		Symbol:       extract.Symbol.Upper(rec.Raw),
		Timeframe:    extract.Timeframe.String(rec.Raw),
		SetupType:    extract.SetupType.String(rec.Raw),
		LineNo:       rec.LineNo,
	}
	if bag, ok := extract.Features.Lookup(rec.Raw); ok && bag.IsObject() {
		var features map[string]any
		if err := json.Unmarshal([]byte(bag.Raw), &features); err == nil {
			sc.Features = features
		}
		if fp, ok := features[domain.MemoryFingerprintKey].(string); ok {
			sc.MemoryFingerprint = fp
		}
	}
	if risk, ok := extract.Risk.Float(rec.Raw); ok {
		sc.RiskUSD = &risk
	}
	return sc
}

func isPlaceholder(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "unknown")
}

// RejectLines encodes quarantined setup contexts for WriteStream.
func (ix *Index) RejectLines() ([][]byte, error) {
	return storage.EncodeLines(ix.Rejects)
}
