package ftl

import (
	"context"
	"io"

	"keitaidump/internal/dump"
	"keitaidump/internal/model"
	"keitaidump/pkg/manifest"
)

// Assemble writes the linear image in logical block order and fills the
// manifest with one entry per logical index. Blocks without a winner are
// zero-filled; the placeholder is deliberate so downstream offsets stay
// block-aligned and gaps are visible in the manifest rather than silently
// compacted. Peak memory is one block buffer regardless of dump size.
func Assemble(ctx context.Context, lm *LogicalMap, banks []*dump.Bank, d *model.Descriptor, w io.Writer, m *manifest.Manifest) error {
	buf := make([]byte, d.BlockSize())
	zero := make([]byte, d.BlockSize())
	for l := 0; l < lm.Blocks; l++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c := lm.Winners[l]; c != nil {
			if err := banks[c.Bank].ReadBlock(c.Record.Block, buf); err != nil {
				return err
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
			m.AddRecovered(l, provenance(*c))
			continue
		}
		if _, err := w.Write(zero); err != nil {
			return err
		}
		if cands := lm.Ambiguous[l]; len(cands) > 0 {
			ps := make([]manifest.Provenance, len(cands))
			for i, c := range cands {
				ps[i] = provenance(c)
			}
			m.AddAmbiguous(l, ps)
		} else {
			m.AddUnrecoverable(l)
		}
	}
	return nil
}

func provenance(c Candidate) manifest.Provenance {
	return manifest.Provenance{
		Bank:          c.Bank,
		PhysicalBlock: c.Record.Block,
		Sequence:      c.Record.Sequence,
	}
}
