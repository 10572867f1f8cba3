package dump

import (
	"fmt"
	"os"

	"keitaidump/internal/model"
)

// Bank is an open main/OOB pair providing bounded random access to pages.
// Reads are positioned (pread), so a Bank is safe for concurrent readers
// and never materializes the dump in memory.
type Bank struct {
	pair Pair
	desc *model.Descriptor
	main *os.File
	oob  *os.File
}

// Open opens the pair's files for page access.
func (p Pair) Open(d *model.Descriptor) (*Bank, error) {
	main, err := os.Open(p.MainPath)
	if err != nil {
		return nil, err
	}
	oob, err := os.Open(p.OOBPath)
	if err != nil {
		main.Close()
		return nil, err
	}
	return &Bank{pair: p, desc: d, main: main, oob: oob}, nil
}

func (b *Bank) Close() error {
	err := b.main.Close()
	if e := b.oob.Close(); err == nil {
		err = e
	}
	return err
}

// Pair returns the validated pair this bank was opened from.
func (b *Bank) Pair() Pair { return b.pair }

// Pages returns the number of physical pages in the bank.
func (b *Bank) Pages() int { return b.pair.Pages }

// Blocks returns the number of physical erase blocks in the bank.
func (b *Bank) Blocks() int { return b.pair.Pages / b.desc.PagesPerBlock }

// ReadPage reads physical page i into main and oob, which must be exactly
// page-size and oob-size long.
func (b *Bank) ReadPage(i int, main, oob []byte) error {
	if i < 0 || i >= b.pair.Pages {
		return fmt.Errorf("page %d out of range [0,%d)", i, b.pair.Pages)
	}
	if len(main) != b.desc.PageSize || len(oob) != b.desc.OOBSize {
		return fmt.Errorf("page %d: buffer sizes %d/%d, want %d/%d",
			i, len(main), len(oob), b.desc.PageSize, b.desc.OOBSize)
	}
	if _, err := b.main.ReadAt(main, int64(i)*int64(b.desc.PageSize)); err != nil {
		return fmt.Errorf("read page %d of %s: %w", i, b.pair.MainPath, err)
	}
	if _, err := b.oob.ReadAt(oob, int64(i)*int64(b.desc.OOBSize)); err != nil {
		return fmt.Errorf("read oob %d of %s: %w", i, b.pair.OOBPath, err)
	}
	return nil
}

// ReadBlock reads physical erase block n's main data into buf, which must
// be exactly one block long.
func (b *Bank) ReadBlock(n int, buf []byte) error {
	if n < 0 || n >= b.Blocks() {
		return fmt.Errorf("block %d out of range [0,%d)", n, b.Blocks())
	}
	if len(buf) != b.desc.BlockSize() {
		return fmt.Errorf("block %d: buffer size %d, want %d", n, len(buf), b.desc.BlockSize())
	}
	if _, err := b.main.ReadAt(buf, int64(n)*int64(b.desc.BlockSize())); err != nil {
		return fmt.Errorf("read block %d of %s: %w", n, b.pair.MainPath, err)
	}
	return nil
}
