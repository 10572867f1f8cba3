package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version info (set by build)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// Global flags
	cfgFile    string
	modelsPath string
	outputDir  string
	workers    int
	verbose    bool

	// exitCode lets extract report degraded completion (2) distinctly
	// from fatal failure (1) and clean success (0).
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "keitaidump",
	Short: "Feature-phone NAND dump FTL reconstruction",
	Long: `keitaidump rebuilds a linear filesystem image from raw NAND flash
dumps of feature-phone handsets.

It pairs a main dump with its out-of-band (OOB) metadata, decodes the
per-model flash translation layer, and writes a logically ordered image
plus a recovery manifest for downstream filesystem extraction.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/keitaidump/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modelsPath, "models", "", "model table CSV (default: embedded table)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "out", "o", "", "output directory (default: ftl_remapped next to the input)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "classification workers (default: number of CPUs)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("models", rootCmd.PersistentFlags().Lookup("models"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("out"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))

	rootCmd.AddCommand(
		newExtractCmd(),
		newDetectCmd(),
		newModelsCmd(),
		newVersionCmd(),
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "keitaidump"))
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("KDX")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	if modelsPath == "" {
		modelsPath = viper.GetString("models")
	}
	if outputDir == "" {
		outputDir = viper.GetString("output")
	}
	if workers == 0 {
		workers = viper.GetInt("workers")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
