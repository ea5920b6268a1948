package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"scoreloop/internal/domain"
)

// VersionInfo describes one artifact found under versions/.
type VersionInfo struct {
	ID      string `json:"id"`
	HasMeta bool   `json:"has_meta"`
	Audited bool   `json:"audited"`
	Current bool   `json:"current"`
}

// Inert reports whether nothing refers to this artifact. Inert artifacts are
// leftovers of an interrupted commit and are never served as current.
func (i VersionInfo) Inert() bool {
	return !i.Audited && !i.Current
}

// Inventory lists committed and leftover artifacts.
type Inventory struct {
	Current  string           `json:"current"`
	Versions []VersionInfo    `json:"versions"`
	Inert    []string         `json:"inert"`
	Kind     domain.ErrorKind `json:"kind,omitempty"`

	// UnauditedCurrent is set when the pointer names a version whose audit
	// line was never written.
	UnauditedCurrent bool `json:"unaudited_current"`
}

// Interrupted reports whether a previous commit stopped part way.
func (inv *Inventory) Interrupted() bool {
	return inv.Kind == domain.KindSnapshotCommitInterrupted
}

// Inspect cross-checks the versions directory against the pointer and the
// audit log. It never modifies anything.
func (v *Versioner) Inspect(ctx context.Context) (*Inventory, error) {
	audit, err := v.VerifyAudit(ctx)
	if err != nil {
		return nil, err
	}
	audited := make(map[string]bool, len(audit.Snapshots))
	for _, id := range audit.Snapshots {
		audited[id] = true
	}

	inv := &Inventory{Versions: []VersionInfo{}, Inert: []string{}}
	ptr, err := v.readPointer()
	switch {
	case err == nil:
		inv.Current = ptr.Current
	case errors.Is(err, ErrNoCurrent):
	default:
		return nil, err
	}

	entries, err := os.ReadDir(v.path(VersionsDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	metas := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case strings.HasSuffix(name, ".meta.json"):
			metas[strings.TrimSuffix(name, ".meta.json")] = true
		case strings.HasSuffix(name, ".json"):
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		info := VersionInfo{
			ID:      id,
			HasMeta: metas[id],
			Audited: audited[id],
			Current: id == inv.Current,
		}
		inv.Versions = append(inv.Versions, info)
		if info.Inert() {
			inv.Inert = append(inv.Inert, id)
		}
		if info.Current && !info.Audited {
			inv.UnauditedCurrent = true
		}
	}
	if len(inv.Inert) > 0 || inv.UnauditedCurrent {
		inv.Kind = domain.KindSnapshotCommitInterrupted
	}
	return inv, nil
}
