package model

import "fmt"

// Variant selects the FTL decoding scheme for a model.
type Variant string

const (
	// VariantLinear has no translation layer: physical block N is logical block N.
	VariantLinear Variant = "linear"
	// VariantSeqNum maps blocks through an OOB logical pointer, newest
	// sequence number wins.
	VariantSeqNum Variant = "seqnum"
	// VariantMirror is a dual-bank dump where both banks hold redundant
	// copies of the full logical space.
	VariantMirror Variant = "mirror"
	// VariantStriped is a dual-bank dump where the logical space is
	// partitioned between banks by a fixed rule.
	VariantStriped Variant = "striped"
)

// BadBlockPolicy names which pages of a block carry the bad-block marker.
type BadBlockPolicy string

const (
	BadBlockFirst     BadBlockPolicy = "first"
	BadBlockFirstLast BadBlockPolicy = "first_last"
)

// StripeRule partitions the logical block space between the banks of a
// striped dual-bank dump.
type StripeRule string

const (
	StripeNone    StripeRule = ""
	StripeEvenOdd StripeRule = "even_odd"
)

// Descriptor is the immutable per-model NAND geometry and FTL layout.
// Loaded once per run from the model table and shared by reference.
type Descriptor struct {
	Model         string
	PageSize      int
	OOBSize       int
	PagesPerBlock int
	LogicalBlocks int
	Variant       Variant
	Arity         int

	// OOB byte offsets. BadBlockOffset is the marker byte (0xFF = good).
	// LBAOffset is a little-endian uint16 logical block pointer and
	// SeqOffset a little-endian uint32 sequence number, both read from a
	// block's first page; -1 when the variant does not carry them.
	// ECCOffset is a parity byte over the page's main data, -1 if the
	// dump has no ECC bytes.
	BadBlockOffset int
	BadBlockPolicy BadBlockPolicy
	LBAOffset      int
	SeqOffset      int
	ECCOffset      int

	Stripe StripeRule
}

// BlockSize returns the main-data size of one erase block.
func (d *Descriptor) BlockSize() int { return d.PageSize * d.PagesPerBlock }

// ImageSize returns the size of the reconstructed linear image.
func (d *Descriptor) ImageSize() int64 {
	return int64(d.LogicalBlocks) * int64(d.BlockSize())
}

// HasECC reports whether the descriptor declares ECC bytes in the OOB area.
func (d *Descriptor) HasECC() bool { return d.ECCOffset >= 0 }

// Mapped reports whether the variant carries OOB block pointers at all.
func (d *Descriptor) Mapped() bool { return d.Variant != VariantLinear }

func (d *Descriptor) validate() error {
	if d.Model == "" {
		return fmt.Errorf("empty model name")
	}
	if d.PageSize <= 0 || d.OOBSize <= 0 || d.PagesPerBlock <= 0 || d.LogicalBlocks <= 0 {
		return fmt.Errorf("model %s: non-positive geometry", d.Model)
	}
	switch d.Variant {
	case VariantLinear, VariantSeqNum:
		if d.Arity != 1 {
			return fmt.Errorf("model %s: variant %s requires one dump, table says %d", d.Model, d.Variant, d.Arity)
		}
	case VariantMirror, VariantStriped:
		if d.Arity != 2 {
			return fmt.Errorf("model %s: variant %s requires two dumps, table says %d", d.Model, d.Variant, d.Arity)
		}
	default:
		return fmt.Errorf("model %s: unknown variant %q", d.Model, d.Variant)
	}
	if d.Mapped() && (d.LBAOffset < 0 || d.SeqOffset < 0) {
		return fmt.Errorf("model %s: variant %s needs lba and seq offsets", d.Model, d.Variant)
	}
	if d.LBAOffset >= 0 && d.LBAOffset+2 > d.OOBSize {
		return fmt.Errorf("model %s: lba offset %d outside oob area", d.Model, d.LBAOffset)
	}
	if d.SeqOffset >= 0 && d.SeqOffset+4 > d.OOBSize {
		return fmt.Errorf("model %s: seq offset %d outside oob area", d.Model, d.SeqOffset)
	}
	if d.BadBlockOffset < 0 || d.BadBlockOffset >= d.OOBSize {
		return fmt.Errorf("model %s: bad-block offset %d outside oob area", d.Model, d.BadBlockOffset)
	}
	if d.ECCOffset >= d.OOBSize {
		return fmt.Errorf("model %s: ecc offset %d outside oob area", d.Model, d.ECCOffset)
	}
	switch d.BadBlockPolicy {
	case BadBlockFirst, BadBlockFirstLast:
	default:
		return fmt.Errorf("model %s: unknown bad-block policy %q", d.Model, d.BadBlockPolicy)
	}
	if d.Variant == VariantStriped && d.Stripe != StripeEvenOdd {
		return fmt.Errorf("model %s: striped variant needs a stripe rule", d.Model)
	}
	if d.Variant != VariantStriped && d.Stripe != StripeNone {
		return fmt.Errorf("model %s: stripe rule %q only valid for striped variant", d.Model, d.Stripe)
	}
	return nil
}

// OwnsLogical reports whether the given bank owns logical block l under the
// descriptor's stripe rule. Always true for non-striped variants.
func (d *Descriptor) OwnsLogical(bank, l int) bool {
	if d.Variant != VariantStriped {
		return true
	}
	switch d.Stripe {
	case StripeEvenOdd:
		return l%2 == bank
	default:
		return false
	}
}
