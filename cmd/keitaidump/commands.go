package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"keitaidump/internal/config"
	"keitaidump/internal/dump"
	"keitaidump/internal/ftl"
	"keitaidump/internal/model"
	"keitaidump/internal/pipeline"
)

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}

func runConfig() config.Config {
	cfg := config.Load(cfgFile)
	if modelsPath != "" {
		cfg.ModelsPath = modelsPath
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	return cfg
}

func newExtractCmd() *cobra.Command {
	var forcedModel string
	var mixed bool

	cmd := &cobra.Command{
		Use:   "extract <main.bin> [<main2.bin>]",
		Short: "Reconstruct a linear image from NAND dump(s)",
		Long: `Reconstruct the logical block device from one or two NAND dumps.

OOB files are discovered as siblings (NAME.oob or NAME_oob.bin). Dual-bank
models take two dumps, bank A first. Exit code 2 signals a degraded
recovery: the image was written but the manifest lists unrecoverable or
ambiguous blocks for review.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			res, err := pipeline.Run(cmd.Context(), pipeline.Options{
				Inputs: args,
				Model:  forcedModel,
				Mixed:  mixed,
				Config: runConfig(),
			}, log)
			if err != nil {
				return describeFatal(err)
			}
			fmt.Printf("Image:    %s\n", res.ImagePath)
			fmt.Printf("Manifest: %s\n", res.ManifestPath)
			s := res.Manifest.Summary
			fmt.Printf("Blocks:   %d recovered, %d unrecoverable, %d ambiguous, %d bad\n",
				s.Recovered, s.Unrecoverable, s.Ambiguous, s.BadBlocks)
			if res.Manifest.Degraded() {
				fmt.Println("Degraded recovery: review the manifest before trusting the image.")
				exitCode = 2
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&forcedModel, "model", "m", "", "force handset model instead of auto-detection")
	cmd.Flags().BoolVar(&mixed, "mixed", false, "inputs interleave each page with its OOB area")
	return cmd
}

// describeFatal prefixes known fatal kinds with remediation hints.
func describeFatal(err error) error {
	switch {
	case errors.Is(err, model.ErrUnknownModel):
		return fmt.Errorf("%w (name the handset with --model or add it to the model table)", err)
	case errors.Is(err, dump.ErrMissingOOB):
		return fmt.Errorf("%w (supply NAME.oob or NAME_oob.bin next to the dump)", err)
	case errors.Is(err, dump.ErrGeometryMismatch):
		return fmt.Errorf("%w (dump does not match the model's page/oob geometry; wrong model or truncated dump)", err)
	case errors.Is(err, dump.ErrArityMismatch):
		return fmt.Errorf("%w (this model's filesystem spans two dumps; pass bank A then bank B)", err)
	case errors.Is(err, ftl.ErrBankAssignment):
		return fmt.Errorf("%w (bank dumps are swapped or from different devices)", err)
	default:
		return err
	}
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <path>",
		Short: "Detect the handset model from a dump path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := runConfig()
			table := model.Default()
			if cfg.ModelsPath != "" {
				var err error
				if table, err = model.LoadFile(cfg.ModelsPath); err != nil {
					return err
				}
			}
			d, err := table.Detect(args[0])
			if err != nil {
				return describeFatal(err)
			}
			fmt.Printf("Detected: %s (variant %s, %d dump(s))\n", d.Model, d.Variant, d.Arity)
			return nil
		},
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported handset models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := runConfig()
			table := model.Default()
			if cfg.ModelsPath != "" {
				var err error
				if table, err = model.LoadFile(cfg.ModelsPath); err != nil {
					return err
				}
			}
			for _, d := range table.Descriptors() {
				fmt.Printf("%-12s %s  page %d+%d  %d pages/block  %d logical blocks  arity %d\n",
					d.Model, d.Variant, d.PageSize, d.OOBSize, d.PagesPerBlock, d.LogicalBlocks, d.Arity)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("keitaidump %s\n", Version)
			fmt.Printf("  build time: %s\n", BuildTime)
			fmt.Printf("  commit:     %s\n", GitCommit)
		},
	}
}
