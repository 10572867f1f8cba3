// Package classify derives per-page FTL metadata from OOB bytes.
package classify

import (
	"encoding/binary"

	"keitaidump/internal/model"
)

// Erased OOB bytes read back as all ones; a pointer or sequence of all
// ones means the field was never programmed.
const (
	noPointer  = 0xFFFF
	noSequence = 0xFFFFFFFF
	goodMarker = 0xFF
)

// PageRecord is the classification of one physical page. Immutable once
// produced; the reconstructor only reads it.
type PageRecord struct {
	Index       int // absolute physical page index
	Block       int // physical erase block index
	PageInBlock int

	// Pointer/Sequence are valid only when the matching Has flag is set.
	// They are decoded from a block's first page; pages 1..n-1 of a block
	// never carry them.
	Pointer     int
	HasPointer  bool
	Sequence    uint32
	HasSequence bool

	// Bad is this page's own marker state after ClassifyPage, and the
	// block-wide state after ApplyBadBlockPolicy.
	Bad   bool
	ECCOK bool
}

// ClassifyPage classifies one page from its main and OOB bytes. Pure
// function of its arguments, so pages can be classified in any order and
// in parallel.
func ClassifyPage(main, oob []byte, d *model.Descriptor, index int) PageRecord {
	r := PageRecord{
		Index:       index,
		Block:       index / d.PagesPerBlock,
		PageInBlock: index % d.PagesPerBlock,
		ECCOK:       true,
	}
	if oob[d.BadBlockOffset] != goodMarker {
		r.Bad = true
	}
	if d.HasECC() {
		r.ECCOK = xorParity(main) == oob[d.ECCOffset]
	}
	if !d.Mapped() || r.PageInBlock != 0 {
		return r
	}
	if p := binary.LittleEndian.Uint16(oob[d.LBAOffset:]); p != noPointer {
		r.Pointer = int(p)
		r.HasPointer = true
	}
	if s := binary.LittleEndian.Uint32(oob[d.SeqOffset:]); s != noSequence {
		r.Sequence = s
		r.HasSequence = true
	}
	return r
}

// ApplyBadBlockPolicy promotes per-page marker state to block-wide state:
// if a block's representative page(s) under the descriptor's policy carry
// the marker, every page of the block is bad.
func ApplyBadBlockPolicy(records []PageRecord, d *model.Descriptor) {
	ppb := d.PagesPerBlock
	for start := 0; start+ppb <= len(records); start += ppb {
		bad := records[start].Bad
		if d.BadBlockPolicy == model.BadBlockFirstLast {
			bad = bad || records[start+ppb-1].Bad
		}
		if !bad {
			continue
		}
		for i := start; i < start+ppb; i++ {
			records[i].Bad = true
		}
	}
}

// CountBadBlocks returns the number of erase blocks marked bad. Call after
// ApplyBadBlockPolicy.
func CountBadBlocks(records []PageRecord, d *model.Descriptor) int {
	n := 0
	for i := 0; i < len(records); i += d.PagesPerBlock {
		if records[i].Bad {
			n++
		}
	}
	return n
}

func xorParity(b []byte) byte {
	var p byte
	for _, v := range b {
		p ^= v
	}
	return p
}
