package modulation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MCSEntry is one row of an MCS table.
type MCSEntry struct {
	Index         int
	Modulation    Kind
	CodeRate      float64
	FEC           FECType
	BandwidthMHz  float64
	MinSNRDB      float64
}

// MCSTable is a finite ordered set of [MCSEntry], monotone non-decreasing
// in MinSNRDB as Index increases.
type MCSTable struct {
	entries []MCSEntry
}

var ErrNotMonotone = errors.New("modulation: mcs table is not monotone non-decreasing in min_snr_db")

// NewMCSTable builds a table from a copy of entries sorted by Index,
// validating the monotonicity invariant.
func NewMCSTable(entries []MCSEntry) (*MCSTable, error) {
	sorted := append([]MCSEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinSNRDB < sorted[i-1].MinSNRDB {
			return nil, fmt.Errorf("%w: index %d (%.2fdB) < index %d (%.2fdB)",
				ErrNotMonotone, sorted[i].Index, sorted[i].MinSNRDB, sorted[i-1].Index, sorted[i-1].MinSNRDB)
		}
	}
	return &MCSTable{entries: sorted}, nil
}

// Len returns the number of entries.
func (t *MCSTable) Len() int { return len(t.entries) }

// Entry returns the entry at a given table position (not necessarily equal
// to MCSEntry.Index, though well-formed tables keep them aligned).
func (t *MCSTable) Entry(pos int) MCSEntry { return t.entries[pos] }

// highestIndexAtOrBelow returns the table position of the highest-index
// entry whose MinSNRDB <= snrDB, or -1 if even the lowest entry exceeds it.
func (t *MCSTable) highestIndexAtOrBelow(snrDB float64) int {
	best := -1
	for i, e := range t.entries {
		if e.MinSNRDB <= snrDB {
			best = i
		}
	}
	return best
}

// SelectionResult is the outcome of an MCS selection.
type SelectionResult struct {
	Entry         MCSEntry
	BelowThreshold bool
}

// LinkKey identifies a directional link for hysteresis-state purposes.
type LinkKey struct {
	TxNode string
	RxNode string
}

// Selector implements the stateful, per-link-hysteresis MCS selection
// rule. The zero value is not usable; use [NewSelector].
type Selector struct {
	table        *MCSTable
	hysteresisDB float64

	mu    sync.Mutex
	state map[LinkKey]int // table position, or -1 meaning "no prior selection"
}

// NewSelector constructs a [Selector] for a table with the given
// hysteresis margin in dB.
func NewSelector(table *MCSTable, hysteresisDB float64) *Selector {
	return &Selector{
		table:        table,
		hysteresisDB: hysteresisDB,
		state:        make(map[LinkKey]int),
	}
}

// Select runs the adaptive MCS rule for one directional link:
//
//   - let current be the previous table position for this link, or none if
//     this is the first selection (the first selection is hysteresis-free);
//   - if snrDB < MinSNRDB(0), return position 0 and BelowThreshold=true;
//   - an upgrade to position k happens iff snrDB >= MinSNRDB(k) +
//     hysteresisDB, i.e. the new tier's floor must be cleared by the full
//     hysteresis margin, not merely met;
//   - a downgrade (snrDB < MinSNRDB(current)) is applied immediately, to
//     the highest position whose floor snrDB still meets.
//
// The metric passed in may be SNR or SINR (or a MAC-reduced effective
// SINR); the rule is metric-agnostic.
func (s *Selector) Select(key LinkKey, metricDB float64) SelectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table.Len() == 0 {
		return SelectionResult{}
	}

	belowThreshold := metricDB < s.table.entries[0].MinSNRDB
	target := s.table.highestIndexAtOrBelow(metricDB)
	if target < 0 {
		target = 0
	}

	current, ok := s.state[key]
	if !ok {
		s.state[key] = target
		return SelectionResult{Entry: s.table.entries[target], BelowThreshold: belowThreshold}
	}

	next := current
	upgrade := s.table.highestIndexAtOrBelow(metricDB - s.hysteresisDB)
	switch {
	case metricDB < s.table.entries[current].MinSNRDB:
		// Downgrade is immediate, bypassing hysteresis, whenever the
		// current entry's floor is no longer met.
		next = target
	case upgrade > current:
		next = upgrade
	}

	s.state[key] = next
	return SelectionResult{Entry: s.table.entries[next], BelowThreshold: belowThreshold}
}

// Reset clears hysteresis state for a link, e.g. on topology rekeying.
func (s *Selector) Reset(key LinkKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, key)
}

// SelectStateless ignores hysteresis state and returns the table position
// that would be chosen from a cold start; used by the monotonicity
// property test and for read-only diagnostics.
func (t *MCSTable) SelectStateless(snrDB float64) SelectionResult {
	pos := t.highestIndexAtOrBelow(snrDB)
	if pos < 0 {
		if t.Len() == 0 {
			return SelectionResult{}
		}
		return SelectionResult{Entry: t.entries[0], BelowThreshold: true}
	}
	return SelectionResult{Entry: t.entries[pos]}
}
