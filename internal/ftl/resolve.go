// Package ftl rebuilds the logical block map from classified pages and
// assembles the linear image.
package ftl

import (
	"errors"
	"fmt"

	"keitaidump/internal/classify"
	"keitaidump/internal/model"
)

// ErrBankAssignment is fatal: a bank of a striped dump carried a pointer
// to a logical block the stripe rule assigns to the other bank, so the
// dumps are mislabeled, swapped, or from different devices.
var ErrBankAssignment = errors.New("bank assignment error")

// Candidate is one eligible physical block contending for a logical slot.
type Candidate struct {
	Bank   int
	Record classify.PageRecord
}

// LogicalMap is the resolved logical-to-physical mapping. A logical index
// has either a winner, a set of tied ambiguous candidates, or nothing.
type LogicalMap struct {
	Blocks    int
	Winners   []*Candidate
	Ambiguous map[int][]Candidate
}

// slot tracks the best candidate seen so far for one logical index.
// ties holds every candidate sharing the best sequence number.
type slot struct {
	best Candidate
	ties []Candidate
}

// Resolve builds the logical block map for one or two banks of classified
// pages, dispatching on the descriptor's FTL variant.
func Resolve(banks [][]classify.PageRecord, d *model.Descriptor) (*LogicalMap, error) {
	if len(banks) != d.Arity {
		return nil, fmt.Errorf("variant %s: got %d banks, want %d", d.Variant, len(banks), d.Arity)
	}
	switch d.Variant {
	case model.VariantLinear:
		return resolveLinear(banks[0], d), nil
	case model.VariantSeqNum:
		slots, err := resolveBank(banks[0], 0, d, false)
		if err != nil {
			return nil, err
		}
		return fromSlots([]map[int]*slot{slots}, d), nil
	case model.VariantMirror:
		a, err := resolveBank(banks[0], 0, d, false)
		if err != nil {
			return nil, err
		}
		b, err := resolveBank(banks[1], 1, d, false)
		if err != nil {
			return nil, err
		}
		return fromSlots([]map[int]*slot{a, b}, d), nil
	case model.VariantStriped:
		a, err := resolveBank(banks[0], 0, d, true)
		if err != nil {
			return nil, err
		}
		b, err := resolveBank(banks[1], 1, d, true)
		if err != nil {
			return nil, err
		}
		// Stripe partitions are disjoint, so merging degenerates to
		// concatenation of the two maps.
		return fromSlots([]map[int]*slot{a, b}, d), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", d.Variant)
	}
}

// resolveLinear maps physical block N to logical block N. A block is
// recoverable when it exists in the dump, is not bad, and its pages pass
// ECC.
func resolveLinear(records []classify.PageRecord, d *model.Descriptor) *LogicalMap {
	lm := &LogicalMap{
		Blocks:    d.LogicalBlocks,
		Winners:   make([]*Candidate, d.LogicalBlocks),
		Ambiguous: map[int][]Candidate{},
	}
	ppb := d.PagesPerBlock
	for b := 0; b*ppb < len(records) && b < d.LogicalBlocks; b++ {
		rep := records[b*ppb]
		if rep.Bad || !rep.ECCOK {
			continue
		}
		lm.Winners[b] = &Candidate{Bank: 0, Record: rep}
	}
	return lm
}

// resolveBank resolves a single bank: candidates are the block-metadata
// records that carry a pointer, sit in a good block, and pass ECC. The
// strictly greatest sequence number wins; equal sequence numbers tie.
// With enforceStripe set, a pointer into the other bank's partition is a
// fatal bank assignment error.
func resolveBank(records []classify.PageRecord, bank int, d *model.Descriptor, enforceStripe bool) (map[int]*slot, error) {
	slots := make(map[int]*slot)
	for _, r := range records {
		if !r.HasPointer || r.Bad || !r.ECCOK {
			continue
		}
		if r.Pointer >= d.LogicalBlocks {
			// Pointers past the declared logical space are spare-area
			// bookkeeping blocks, not data.
			continue
		}
		if enforceStripe && !d.OwnsLogical(bank, r.Pointer) {
			return nil, fmt.Errorf("bank %d physical block %d claims logical block %d: %w",
				bank, r.Block, r.Pointer, ErrBankAssignment)
		}
		c := Candidate{Bank: bank, Record: r}
		s, ok := slots[r.Pointer]
		if !ok {
			slots[r.Pointer] = &slot{best: c}
			continue
		}
		switch {
		case r.Sequence > s.best.Record.Sequence:
			s.best = c
			s.ties = nil
		case r.Sequence == s.best.Record.Sequence:
			s.ties = append(s.ties, c)
		}
	}
	return slots, nil
}

// fromSlots merges per-bank resolutions into the final map. With one
// slot map this is a straight copy. With two (mirror), the greater
// sequence number wins across banks; bank 0 is preferred on equal
// sequences, as mirrored banks carrying the same sequence hold the same
// write generation. If the slot with the greatest sequence is itself a
// tie, the block stays ambiguous; a lower-sequence record from the other
// bank is stale data and must not silently win.
func fromSlots(banks []map[int]*slot, d *model.Descriptor) *LogicalMap {
	lm := &LogicalMap{
		Blocks:    d.LogicalBlocks,
		Winners:   make([]*Candidate, d.LogicalBlocks),
		Ambiguous: map[int][]Candidate{},
	}
	for l := 0; l < d.LogicalBlocks; l++ {
		var chosen *slot
		for _, bank := range banks {
			s, ok := bank[l]
			if !ok {
				continue
			}
			if chosen == nil || s.best.Record.Sequence > chosen.best.Record.Sequence {
				chosen = s
			}
		}
		if chosen == nil {
			continue
		}
		if len(chosen.ties) > 0 {
			cands := append([]Candidate{chosen.best}, chosen.ties...)
			lm.Ambiguous[l] = cands
			continue
		}
		win := chosen.best
		lm.Winners[l] = &win
	}
	return lm
}
