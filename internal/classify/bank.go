package classify

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"keitaidump/internal/dump"
	"keitaidump/internal/model"
)

// ClassifyBank classifies every page of a bank across parallel workers and
// returns the records ordered by physical page index. Each worker owns a
// contiguous index range and writes records at the record's own slot, so
// there is no shared mutable state and no post-sort. The returned slice is
// complete: the call is the join point required before reconstruction.
func ClassifyBank(ctx context.Context, b *dump.Bank, d *model.Descriptor, workers int) ([]PageRecord, error) {
	n := b.Pages()
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	records := make([]PageRecord, n)

	g, ctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, n)
		if start >= end {
			break
		}
		g.Go(func() error {
			main := make([]byte, d.PageSize)
			oob := make([]byte, d.OOBSize)
			for i := start; i < end; i++ {
				if i%d.PagesPerBlock == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if err := b.ReadPage(i, main, oob); err != nil {
					return err
				}
				records[i] = ClassifyPage(main, oob, d, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ApplyBadBlockPolicy(records, d)
	return records, nil
}
