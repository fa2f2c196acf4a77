package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/fdsec/pkg/scanner"
	"github.com/praetorian-inc/fdsec/pkg/serve"
)

var (
	serveSignaturesPath string
	serveHashes         string
	serveWhitelist      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as streaming scan server",
	Long: `Run fdsec as a long-lived streaming server that accepts scan requests
via stdin and writes verdicts to stdout using NDJSON.

Each request is one JSON object per line, e.g.
  {"type":"scan","payload":{"source":"upload:1","content":"<base64>"}}
The process loads signatures once at startup and processes requests until
stdin closes, a "close" request arrives, or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSignaturesPath, "signatures", "", "Signature file or http(s) URL (default: builtin)")
	serveCmd.Flags().StringVar(&serveHashes, "hashes", "", "SHA-256 blacklist file or http(s) URL")
	serveCmd.Flags().StringVar(&serveWhitelist, "whitelist", "", "SHA-256 whitelist file or http(s) URL")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sigs, err := loadSignatures(ctx, serveSignaturesPath, "", "")
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}
	hashes, err := loadHashLists(ctx, serveHashes, serveWhitelist)
	if err != nil {
		return err
	}
	cfg, err := engineConfig("automaton", "exact", 0, 0, false)
	if err != nil {
		return err
	}
	cfg.Hashes = hashes

	core := scanner.NewCoreWithSignatures(sigs, cfg)
	defer core.Close()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
