package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	quiet   bool

	// logger is replaced in PersistentPreRun; commands invoked directly
	// (as in tests) log nowhere.
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "fdsec",
	Short: "fdsec - signature-based malware scanner",
	Long: `fdsec scans files, archives and running process images for malware.

Signatures are boolean expressions over hex byte patterns such as
"4D5A AND (DEADBEEF OR CAFEBABE)". Every target is streamed once through
an Aho-Corasick automaton, so large files are scanned in bounded memory.
Optional SHA-256 blacklists and whitelists are consulted first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(cmd.ErrOrStderr(), verbose, quiet)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(signaturesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	defer logger.Sync() //nolint:errcheck
	return rootCmd.Execute()
}

// newLogger builds a console logger on w. Warnings are shown by default.
func newLogger(w io.Writer, verbose, quiet bool) *zap.Logger {
	level := zapcore.WarnLevel
	switch {
	case quiet:
		level = zapcore.ErrorLevel
	case verbose:
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return zap.New(core)
}
