// Package main provides the entry point for WireGuard Manager.
// WireGuard Manager registers WireGuard configuration files and brings
// their kernel interfaces up and down.
//
// Usage:
//
//	wg-manager [--config file] [--verbose] <command> [args]
//
// Environment:
//
//	Creating interfaces needs CAP_NET_ADMIN. The wg-tool backend also
//	needs the wg binary from wireguard-tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yllada/wg-manager/cli"
	"github.com/yllada/wg-manager/common"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() { _ = common.CloseLogger() }()

	runner := cli.NewRunner(cli.BuildInfo{
		Version: appVersion,
		Time:    buildTime,
		Commit:  commitSHA,
	})

	err := runner.Command().ExecuteContext(ctx)
	if closeErr := runner.Close(); closeErr != nil {
		common.LogError("Shutdown: %v", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
