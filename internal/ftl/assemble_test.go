package ftl

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"keitaidump/internal/classify"
	"keitaidump/internal/dump"
	"keitaidump/internal/model"
	"keitaidump/pkg/manifest"
)

// openTestBank writes a bank whose physical block n is filled with byte
// 0xA0+n and carries pointer/seq from specs, then opens it.
func openTestBank(t *testing.T, d *model.Descriptor, specs [][2]int) *dump.Bank {
	t.Helper()
	dir := t.TempDir()
	var main, oob []byte
	for b, s := range specs {
		for p := 0; p < d.PagesPerBlock; p++ {
			main = append(main, bytes.Repeat([]byte{byte(0xA0 + b)}, d.PageSize)...)
			o := bytes.Repeat([]byte{0xFF}, d.OOBSize)
			if p == 0 && s[0] >= 0 {
				binary.LittleEndian.PutUint16(o[d.LBAOffset:], uint16(s[0]))
				binary.LittleEndian.PutUint32(o[d.SeqOffset:], uint32(s[1]))
			}
			o[d.ECCOffset] = 0 // xor of repeated byte over even page size
			oob = append(oob, o...)
		}
	}
	mainPath := filepath.Join(dir, "nand.bin")
	if err := os.WriteFile(mainPath, main, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nand.oob"), oob, 0o644); err != nil {
		t.Fatal(err)
	}
	pairs, err := dump.PairFiles([]string{mainPath}, d)
	if err != nil {
		t.Fatal(err)
	}
	bank, err := pairs[0].Open(d)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bank.Close() })
	return bank
}

func TestAssemble(t *testing.T) {
	d := testDesc(model.VariantSeqNum)
	// physical blocks: {pointer, seq}
	bank := openTestBank(t, d, [][2]int{
		{0, 1},  // logical 0
		{2, 5},  // stale logical 2
		{2, 9},  // current logical 2
		{1, 2},  // logical 1
		{-1, 0}, // spare
		{-1, 0},
	})
	recs, err := classify.ClassifyBank(context.Background(), bank, d, 2)
	if err != nil {
		t.Fatal(err)
	}
	lm, err := Resolve([][]classify.PageRecord{recs}, d)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	m := manifest.New(d.Model, string(d.Variant))
	if err := Assemble(context.Background(), lm, []*dump.Bank{bank}, d, &out, m); err != nil {
		t.Fatal(err)
	}

	if out.Len() != int(d.ImageSize()) {
		t.Fatalf("image size %d, want %d", out.Len(), d.ImageSize())
	}
	img := out.Bytes()
	bs := d.BlockSize()
	wantFill := map[int]byte{0: 0xA0, 1: 0xA3, 2: 0xA2}
	for l, fill := range wantFill {
		if img[l*bs] != fill || img[(l+1)*bs-1] != fill {
			t.Fatalf("logical %d fill %x, want %x", l, img[l*bs], fill)
		}
	}
	// logical 3: documented zero placeholder
	for i := 3 * bs; i < 4*bs; i++ {
		if img[i] != 0 {
			t.Fatalf("placeholder byte %d = %x", i, img[i])
		}
	}

	if m.Summary.Recovered != 3 || m.Summary.Unrecoverable != 1 || m.Summary.Ambiguous != 0 {
		t.Fatalf("summary: %+v", m.Summary)
	}
	if len(m.Unresolved) != 1 || m.Unresolved[0] != 3 {
		t.Fatalf("unresolved: %v", m.Unresolved)
	}
	if src := m.Blocks[2].Source; src == nil || src.PhysicalBlock != 2 || src.Sequence != 9 {
		t.Fatalf("logical 2 provenance: %+v", m.Blocks[2].Source)
	}
	if !m.Degraded() {
		t.Fatal("run with gaps must be degraded")
	}
}

func TestAssembleCancelled(t *testing.T) {
	d := testDesc(model.VariantSeqNum)
	bank := openTestBank(t, d, [][2]int{{0, 1}, {1, 1}, {2, 1}, {3, 1}})
	recs, err := classify.ClassifyBank(context.Background(), bank, d, 1)
	if err != nil {
		t.Fatal(err)
	}
	lm, err := Resolve([][]classify.PageRecord{recs}, d)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	m := manifest.New(d.Model, string(d.Variant))
	if err := Assemble(ctx, lm, []*dump.Bank{bank}, d, &out, m); err == nil {
		t.Fatal("expected context error")
	}
	if out.Len() == int(d.ImageSize()) {
		t.Fatal("cancelled assembly produced full image")
	}
}
