// Package main implements docmgmt, a minimal CLI standing in for the
// document-management backend's out-of-scope HTTP/RPC surface. It
// exercises the core search/index/audit operations end-to-end against
// a real embedded store.
//
// # File Index
//
//	main.go       - entry point, rootCmd, global flags, init()
//	cmd_search.go - searchCmd, gridCmd
//	cmd_index.go  - indexCmd (drain write-ahead queue)
//	cmd_audit.go  - auditCmd, auditVerifyCmd, auditRepairCmd
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"veriado/internal/config"
	"veriado/internal/store"
)

var (
	verbose  bool
	dbPath   string
	cfgPath  string

	logger *zap.Logger
	cfg    *config.Config
	st     *store.Store
)

var rootCmd = &cobra.Command{
	Use:   "docmgmt",
	Short: "Local-first document search and indexing CLI",
	Long: `docmgmt drives the hybrid FTS5/trigram search engine, the
indexing coordinator, and the integrity auditor against an embedded
database file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}

		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dbPath != "" {
			loaded.DatabasePath = dbPath
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded

		st, err = store.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			_ = st.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "docmgmt.yaml", "path to YAML config file")

	auditCmd.AddCommand(auditVerifyCmd, auditRepairCmd)

	rootCmd.AddCommand(
		searchCmd,
		gridCmd,
		indexCmd,
		auditCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
