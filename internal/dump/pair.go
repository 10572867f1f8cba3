package dump

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"keitaidump/internal/model"
)

// Fatal pairing failures. Extraction cannot proceed past any of these.
var (
	ErrMissingOOB       = errors.New("missing oob file")
	ErrGeometryMismatch = errors.New("geometry mismatch")
	ErrArityMismatch    = errors.New("dump arity mismatch")
)

// Pair is one validated main/OOB dump file pair.
type Pair struct {
	MainPath string
	OOBPath  string
	MainSize int64
	OOBSize  int64
	Pages    int
}

// DiscoverOOB finds the OOB sibling of a main dump file by naming
// convention: NAME.oob next to NAME, or NAME_oob.bin.
func DiscoverOOB(mainPath string) (string, error) {
	stem := strings.TrimSuffix(mainPath, ".bin")
	for _, cand := range []string{stem + ".oob", stem + "_oob.bin"} {
		if fi, err := os.Stat(cand); err == nil && !fi.IsDir() {
			return cand, nil
		}
	}
	return "", fmt.Errorf("no oob sibling for %s: %w", mainPath, ErrMissingOOB)
}

// PairFiles pairs each main dump with its OOB sibling and validates both
// against the descriptor's geometry. The number of mains must equal the
// model's dump arity.
func PairFiles(mains []string, d *model.Descriptor) ([]Pair, error) {
	if len(mains) != d.Arity {
		return nil, fmt.Errorf("model %s expects %d dump file(s), got %d: %w",
			d.Model, d.Arity, len(mains), ErrArityMismatch)
	}
	pairs := make([]Pair, 0, len(mains))
	for _, main := range mains {
		oob, err := DiscoverOOB(main)
		if err != nil {
			return nil, err
		}
		p, err := validatePair(main, oob, d)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func validatePair(mainPath, oobPath string, d *model.Descriptor) (Pair, error) {
	mi, err := os.Stat(mainPath)
	if err != nil {
		return Pair{}, err
	}
	oi, err := os.Stat(oobPath)
	if err != nil {
		return Pair{}, err
	}
	if mi.Size()%int64(d.PageSize) != 0 {
		return Pair{}, fmt.Errorf("%s: size %d not a multiple of page size %d: %w",
			mainPath, mi.Size(), d.PageSize, ErrGeometryMismatch)
	}
	if oi.Size()%int64(d.OOBSize) != 0 {
		return Pair{}, fmt.Errorf("%s: size %d not a multiple of oob size %d: %w",
			oobPath, oi.Size(), d.OOBSize, ErrGeometryMismatch)
	}
	mainPages := mi.Size() / int64(d.PageSize)
	oobPages := oi.Size() / int64(d.OOBSize)
	if mainPages != oobPages {
		return Pair{}, fmt.Errorf("%s: %d pages vs %s: %d oob records: %w",
			mainPath, mainPages, oobPath, oobPages, ErrGeometryMismatch)
	}
	if mainPages%int64(d.PagesPerBlock) != 0 {
		return Pair{}, fmt.Errorf("%s: %d pages is a partial erase block (%d pages/block): %w",
			mainPath, mainPages, d.PagesPerBlock, ErrGeometryMismatch)
	}
	return Pair{
		MainPath: mainPath,
		OOBPath:  oobPath,
		MainSize: mi.Size(),
		OOBSize:  oi.Size(),
		Pages:    int(mainPages),
	}, nil
}
