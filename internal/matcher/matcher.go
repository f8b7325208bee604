// Package matcher resolves free-form item mentions against the catalog.
package matcher

import (
	"errors"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
)

// Resolution failures. All are recoverable: the caller skips the entry.
var (
	ErrNoCandidates  = errors.New("no matching catalog item")
	ErrAmbiguous     = errors.New("ambiguous item mention")
	ErrLowConfidence = errors.New("match confidence too low")
)

// GradeUndefined marks a mention or catalog entry without a grade/duration
// hint. The value comes from the extraction contract.
const GradeUndefined = "undefined"

const (
	ratioWeight   = 0.4
	partialWeight = 0.6
	topN          = 5
	minScore      = 80.0
)

// Result is an accepted resolution.
type Result struct {
	Item  *database.Item
	Score float64
}

type candidate struct {
	item  *database.Item
	score float64
}

// Matcher scores mentions against a fixed catalog snapshot. The snapshot is
// taken once at startup; the catalog is read-only during the trading phase.
type Matcher struct {
	items []database.Item
}

func New(items []database.Item) *Matcher {
	return &Matcher{items: items}
}

// Match maps a mention plus optional grade/duration hints to exactly one
// catalog item. Deterministic for a fixed catalog snapshot.
func (m *Matcher) Match(mention, grade, duration string) (*Result, error) {
	cands := m.topCandidates(mention)

	if grade != GradeUndefined {
		cands = filterCandidates(cands, func(c candidate) bool { return c.item.Grade == grade })
	} else if sameTopName(cands) {
		return nil, ErrAmbiguous
	}
	if len(cands) == 0 {
		return nil, ErrNoCandidates
	}

	if duration != GradeUndefined {
		cands = filterCandidates(cands, func(c candidate) bool { return c.item.Duration == duration })
	} else if sameTopName(cands) {
		return nil, ErrAmbiguous
	}
	if len(cands) == 0 {
		return nil, ErrNoCandidates
	}

	if cands[0].score < minScore {
		return nil, ErrLowConfidence
	}
	return &Result{Item: cands[0].item, Score: cands[0].score}, nil
}

// topCandidates scans the whole catalog and keeps the 5 best-scoring entries.
// Ties keep the earlier catalog entry, so ordering is stable.
func (m *Matcher) topCandidates(mention string) []candidate {
	needle := strings.ToLower(mention)
	top := make([]*candidate, topN)

	for i := range m.items {
		item := &m.items[i]
		name := strings.ToLower(item.Name)
		score := ratioWeight*float64(fuzzy.Ratio(needle, name)) +
			partialWeight*float64(fuzzy.PartialRatio(needle, name))
		cur := &candidate{item: item, score: score}

		for k := 0; k < topN; k++ {
			if top[k] == nil {
				top[k] = cur
				break
			}
			if cur.score > top[k].score {
				for l := k; l < topN; l++ {
					cur, top[l] = top[l], cur
				}
				break
			}
		}
	}

	out := make([]candidate, 0, topN)
	for _, c := range top {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

func filterCandidates(cands []candidate, keep func(candidate) bool) []candidate {
	out := cands[:0]
	for _, c := range cands {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// sameTopName reports whether the two best surviving candidates display the
// same catalog name, which makes an unhinted mention unresolvable.
func sameTopName(cands []candidate) bool {
	return len(cands) >= 2 && cands[0].item.Name == cands[1].item.Name
}
