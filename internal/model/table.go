package model

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownModel is returned when no table entry matches the requested or
// detected model identifier.
var ErrUnknownModel = errors.New("unknown model")

//go:embed models.csv
var defaultTable []byte

// Table maps normalized model identifiers to layout descriptors.
// Immutable after load.
type Table struct {
	descriptors []*Descriptor
	byID        map[string]*Descriptor
}

// Default returns the table embedded in the binary.
func Default() *Table {
	t, err := Load(bytes.NewReader(defaultTable))
	if err != nil {
		// The embedded table is validated by tests; a parse failure here
		// is a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded model table: %v", err))
	}
	return t
}

// LoadFile loads a model table from an external CSV file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

var tableColumns = []string{
	"model", "page_size", "oob_size", "pages_per_block", "logical_blocks",
	"variant", "arity", "bad_block_offset", "bad_block_policy",
	"lba_offset", "seq_offset", "ecc_offset", "stripe",
}

// Load parses a CSV model table. The first record must be the header row.
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("model table header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, c := range tableColumns {
		if _, ok := col[c]; !ok {
			return nil, fmt.Errorf("model table: missing column %q", c)
		}
	}

	t := &Table{byID: make(map[string]*Descriptor)}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("model table line %d: %w", line, err)
		}
		field := func(name string) string { return strings.TrimSpace(rec[col[name]]) }
		num := func(name string) (int, error) {
			s := field(name)
			if s == "-" {
				return -1, nil
			}
			return strconv.Atoi(s)
		}

		d := &Descriptor{
			Model:          field("model"),
			Variant:        Variant(field("variant")),
			BadBlockPolicy: BadBlockPolicy(field("bad_block_policy")),
		}
		if s := field("stripe"); s != "-" {
			d.Stripe = StripeRule(s)
		}
		for _, f := range []struct {
			name string
			dst  *int
		}{
			{"page_size", &d.PageSize},
			{"oob_size", &d.OOBSize},
			{"pages_per_block", &d.PagesPerBlock},
			{"logical_blocks", &d.LogicalBlocks},
			{"arity", &d.Arity},
			{"bad_block_offset", &d.BadBlockOffset},
			{"lba_offset", &d.LBAOffset},
			{"seq_offset", &d.SeqOffset},
			{"ecc_offset", &d.ECCOffset},
		} {
			v, err := num(f.name)
			if err != nil {
				return nil, fmt.Errorf("model table line %d: column %s: %w", line, f.name, err)
			}
			*f.dst = v
		}
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("model table line %d: %w", line, err)
		}
		id := Normalize(d.Model)
		if _, dup := t.byID[id]; dup {
			return nil, fmt.Errorf("model table line %d: duplicate model %q", line, d.Model)
		}
		t.descriptors = append(t.descriptors, d)
		t.byID[id] = d
	}
	return t, nil
}

// Lookup returns the descriptor for a normalized model identifier.
func (t *Table) Lookup(id string) (*Descriptor, error) {
	d, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("model %q: %w", id, ErrUnknownModel)
	}
	return d, nil
}

// Models returns the table's model names, sorted.
func (t *Table) Models() []string {
	names := make([]string, 0, len(t.descriptors))
	for _, d := range t.descriptors {
		names = append(names, d.Model)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the table entries in load order.
func (t *Table) Descriptors() []*Descriptor { return t.descriptors }

// Detect walks the components of path from the deepest upward and returns
// the descriptor whose normalized model name appears in a component; when
// several match the same component the longest name wins, so "p902is"
// beats "p902i". Dump folders are conventionally named after the handset
// (e.g. KTdumper_2025-09-26_08-37-38_p902i_dump_nand).
func (t *Table) Detect(path string) (*Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	for p := abs; ; {
		base := strings.ToLower(filepath.Base(p))
		var best *Descriptor
		bestLen := 0
		for _, d := range t.descriptors {
			id := Normalize(d.Model)
			if id != "" && strings.Contains(base, id) && len(id) > bestLen {
				best, bestLen = d, len(id)
			}
		}
		if best != nil {
			return best, nil
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	return nil, fmt.Errorf("no model name in path %q: %w", path, ErrUnknownModel)
}
