// Package pipeline sequences the extraction run: model lookup, dump
// pairing, parallel page classification, FTL resolution, and atomic
// output promotion. Data flows strictly downstream; each stage only
// consumes the previous stage's output.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"keitaidump/internal/classify"
	"keitaidump/internal/config"
	"keitaidump/internal/dump"
	"keitaidump/internal/fsatomic"
	"keitaidump/internal/ftl"
	"keitaidump/internal/model"
	"keitaidump/pkg/manifest"
)

const (
	imageName    = "remapped.bin"
	manifestName = "manifest.json"
	outDirName   = "ftl_remapped"
)

// Options select the inputs and per-run overrides for one extraction.
type Options struct {
	// Inputs are the main dump file(s); for dual-bank models the order is
	// bank A then bank B. OOB siblings are discovered, not listed.
	Inputs []string
	// Model forces a handset model instead of path auto-detection.
	Model string
	// Mixed marks inputs whose pages are interleaved with their OOB
	// areas; they are separated into the output directory first.
	Mixed bool

	Config config.Config
}

// Result is the completed run: output paths plus the frozen manifest.
type Result struct {
	Descriptor   *model.Descriptor
	ImagePath    string
	ManifestPath string
	Manifest     *manifest.Manifest
}

// Run executes one extraction. Fatal conditions return an error before
// any output exists; per-block findings land in the manifest and the run
// still produces an image (check Result.Manifest.Degraded).
func Run(ctx context.Context, opts Options, log zerolog.Logger) (*Result, error) {
	if len(opts.Inputs) == 0 {
		return nil, fmt.Errorf("no input files")
	}

	table, err := loadTable(opts.Config.ModelsPath)
	if err != nil {
		return nil, err
	}
	desc, err := selectModel(table, opts)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("model", desc.Model).
		Str("variant", string(desc.Variant)).
		Int("logical_blocks", desc.LogicalBlocks).
		Msg("model selected")

	outDir := opts.Config.OutputDir
	if outDir == "" {
		outDir = filepath.Join(filepath.Dir(opts.Inputs[0]), outDirName)
	}

	inputs := opts.Inputs
	if opts.Mixed {
		if inputs, err = separateMixed(inputs, outDir, desc, log); err != nil {
			return nil, err
		}
	}

	pairs, err := dump.PairFiles(inputs, desc)
	if err != nil {
		return nil, err
	}

	man := manifest.New(desc.Model, string(desc.Variant))
	banks := make([]*dump.Bank, 0, len(pairs))
	defer func() {
		for _, b := range banks {
			b.Close()
		}
	}()

	records := make([][]classify.PageRecord, 0, len(pairs))
	for i, p := range pairs {
		log.Info().Int("bank", i).Str("main", p.MainPath).Str("oob", p.OOBPath).
			Int("pages", p.Pages).Msg("classifying bank")
		b, err := p.Open(desc)
		if err != nil {
			return nil, err
		}
		banks = append(banks, b)
		recs, err := classify.ClassifyBank(ctx, b, desc, opts.Config.Workers)
		if err != nil {
			return nil, err
		}
		bad := classify.CountBadBlocks(recs, desc)
		man.AddBank(manifest.BankInfo{Main: p.MainPath, OOB: p.OOBPath, Pages: p.Pages, BadBlocks: bad})
		if bad > 0 {
			log.Info().Int("bank", i).Int("bad_blocks", bad).Msg("bad blocks excluded")
		}
		records = append(records, recs)
	}

	lm, err := ftl.Resolve(records, desc)
	if err != nil {
		return nil, err
	}

	imagePath := filepath.Join(outDir, imageName)
	pf, err := fsatomic.Create(imagePath, 0o644)
	if err != nil {
		return nil, err
	}
	defer pf.Abort()
	if err := ftl.Assemble(ctx, lm, banks, desc, pf, man); err != nil {
		return nil, err
	}
	man.Freeze()
	if err := pf.Commit(); err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(outDir, manifestName)
	if err := fsatomic.SaveJSON(manifestPath, man, 0o644); err != nil {
		return nil, err
	}

	s := man.Summary
	log.Info().
		Int("recovered", s.Recovered).
		Int("unrecoverable", s.Unrecoverable).
		Int("ambiguous", s.Ambiguous).
		Int("bad_blocks", s.BadBlocks).
		Bool("degraded", man.Degraded()).
		Str("image", imagePath).
		Msg("reconstruction complete")

	return &Result{
		Descriptor:   desc,
		ImagePath:    imagePath,
		ManifestPath: manifestPath,
		Manifest:     man,
	}, nil
}

func loadTable(path string) (*model.Table, error) {
	if path == "" {
		return model.Default(), nil
	}
	return model.LoadFile(path)
}

func selectModel(table *model.Table, opts Options) (*model.Descriptor, error) {
	if opts.Model != "" {
		return table.Lookup(model.Normalize(opts.Model))
	}
	return table.Detect(opts.Inputs[0])
}

// separateMixed splits interleaved dumps into main+OOB files under outDir
// so pairing sees the conventional two-file layout.
func separateMixed(inputs []string, outDir string, d *model.Descriptor, log zerolog.Logger) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	mains := make([]string, 0, len(inputs))
	for i, in := range inputs {
		stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		outMain := filepath.Join(outDir, fmt.Sprintf("%02d_%s.bin", i, stem))
		outOOB := filepath.Join(outDir, fmt.Sprintf("%02d_%s.oob", i, stem))
		log.Info().Str("mixed", in).Str("main", outMain).Msg("separating mixed dump")
		if err := dump.SeparateMixed(in, outMain, outOOB, d); err != nil {
			return nil, err
		}
		mains = append(mains, outMain)
	}
	return mains, nil
}
