// Package weights holds the immutable base trust-weight table and the pure
// renormalization applied when sources are missing.
package weights

import (
	"errors"
	"fmt"
	"math"
	"maps"

	"skillcred/internal/evidence/models"
)

// ErrZeroEvidence means no available source carries weight, so no score
// can be produced.
var ErrZeroEvidence = errors.New("zero evidence: no available source")

// Tolerance bounds floating error when checking that weights sum to 1.
const Tolerance = 1e-6

// Table is an immutable base weight table.
type Table struct {
	base map[models.SourceID]float64
}

// Weights maps each available source to its renormalized weight.
type Weights map[models.SourceID]float64

// DefaultBase is the base table used when configuration does not override it.
func DefaultBase() map[models.SourceID]float64 {
	return map[models.SourceID]float64{
		models.SourceCodeHost:          0.45,
		models.SourceNarrative:         0.25,
		models.SourceNetworkProfile:    0.15,
		models.SourceCompetitiveCoding: 0.10,
		models.SourceLiveAssessment:    0.05,
	}
}

// Default returns the table built from DefaultBase.
func Default() Table {
	t, _ := NewTable(DefaultBase())
	return t
}

// NewTable validates base and copies it. Every key must be a known source,
// every weight non-negative, and the total 1.0 within Tolerance.
func NewTable(base map[models.SourceID]float64) (Table, error) {
	sum := 0.0
	for src, w := range base {
		if _, ok := models.ParseSourceID(string(src)); !ok {
			return Table{}, fmt.Errorf("unknown source %q in weight table", src)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return Table{}, fmt.Errorf("weight for %s must be a non-negative number", src)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > Tolerance {
		return Table{}, fmt.Errorf("base weights must sum to 1.0, got %.6f", sum)
	}
	return Table{base: maps.Clone(base)}, nil
}

// FromConfig builds a table from string-keyed configuration.
func FromConfig(raw map[string]float64) (Table, error) {
	base := make(map[models.SourceID]float64, len(raw))
	for k, w := range raw {
		base[models.SourceID(k)] = w
	}
	return NewTable(base)
}

// Base returns the configured weight of src, zero when absent.
func (t Table) Base(src models.SourceID) float64 {
	return t.base[src]
}

// Sources returns the table as EvidenceSource entries with availability
// taken from available.
func (t Table) Sources(available []models.SourceID) []models.EvidenceSource {
	avail := make(map[models.SourceID]bool, len(available))
	for _, s := range available {
		avail[s] = true
	}
	out := make([]models.EvidenceSource, 0, len(models.AllSources))
	for _, s := range models.AllSources {
		out = append(out, models.EvidenceSource{ID: s, BaseWeight: t.base[s], Available: avail[s]})
	}
	return out
}

// Renormalize redistributes weight across the available sources:
// w'[s] = base[s] / Σ base[available]. Unavailable sources get no entry.
func (t Table) Renormalize(available []models.SourceID) (Weights, error) {
	seen := make(map[models.SourceID]bool, len(available))
	total := 0.0
	for _, s := range available {
		if seen[s] {
			continue
		}
		seen[s] = true
		total += t.base[s]
	}
	if total <= 0 {
		return nil, ErrZeroEvidence
	}
	out := make(Weights, len(seen))
	for s := range seen {
		out[s] = t.base[s] / total
	}
	return out, nil
}

// Sum returns the total of the weights.
func (w Weights) Sum() float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}

// Of returns the weight of src, zero when unavailable.
func (w Weights) Of(src models.SourceID) float64 {
	return w[src]
}
