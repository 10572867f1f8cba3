package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"keitaidump/internal/model"
)

// SeparateMixed splits a mixed dump, where every main page is immediately
// followed by its OOB area, into separate main and OOB files. Some dumpers
// emit this interleaved layout as nand_mixed.bin.
func SeparateMixed(mixedPath, outMain, outOOB string, d *model.Descriptor) error {
	in, err := os.Open(mixedPath)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	stride := int64(d.PageSize + d.OOBSize)
	if fi.Size()%stride != 0 {
		return fmt.Errorf("%s: size %d not a multiple of page+oob stride %d: %w",
			mixedPath, fi.Size(), stride, ErrGeometryMismatch)
	}

	mf, err := os.Create(outMain)
	if err != nil {
		return err
	}
	defer mf.Close()
	of, err := os.Create(outOOB)
	if err != nil {
		return err
	}
	defer of.Close()

	r := bufio.NewReaderSize(in, 1<<20)
	mw := bufio.NewWriterSize(mf, 1<<20)
	ow := bufio.NewWriterSize(of, 1<<16)
	buf := make([]byte, stride)
	for pages := fi.Size() / stride; pages > 0; pages-- {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read %s: %w", mixedPath, err)
		}
		if _, err := mw.Write(buf[:d.PageSize]); err != nil {
			return err
		}
		if _, err := ow.Write(buf[d.PageSize:]); err != nil {
			return err
		}
	}
	if err := mw.Flush(); err != nil {
		return err
	}
	if err := ow.Flush(); err != nil {
		return err
	}
	if err := mf.Close(); err != nil {
		return err
	}
	return of.Close()
}
