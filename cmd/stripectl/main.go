// Package main implements stripectl, an operator CLI for the Stripe facility.
//
// Usage:
//
//	stripectl sign --secret=whsec_... --payload-file=event.json [--timestamp=1700000000] [--rotate-secret=whsec_old]
//	stripectl verify --endpoint=invoice --header='t=...,v1=...' --payload-file=event.json [--tolerance=5m]
//	stripectl customers list --limit=10
//	stripectl invoices finalize --id=in_123 --param auto_advance=true
//	stripectl subscriptions cancel --id=sub_123 --param prorate=false
//	stripectl checkout create --param mode=payment --param 'line_items[0][price]=price_1' ...
//
// Resource commands and verify read configuration the same way the API does
// (environment, .env file, *_SSM_PARAM indirection). sign needs no
// configuration. Results are printed to stdout as indented JSON.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stripefacility/internal/config"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// cli carries the process streams and seams used by every subcommand.
type cli struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (*config.Config, error)
	now        func() time.Time
	httpClient *http.Client
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &cli{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		loadConfig: func() (*config.Config, error) {
			return config.LoadConfig(config.NewSecretProvider(os.Getenv("SECRETS_PROVIDER"), os.Getenv("AWS_REGION")))
		},
		now: time.Now,
	}
	os.Exit(c.run(ctx, os.Args[1:]))
}

func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.usage()
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "sign":
		return c.runSign(rest)
	case "verify":
		return c.runVerify(rest)
	case "help", "-h", "--help":
		c.usage()
		return exitOK
	}

	if _, ok := resources[cmd]; ok {
		return c.runResource(ctx, cmd, rest)
	}

	fmt.Fprintf(c.stderr, "error: unknown command %q\n\n", cmd)
	c.usage()
	return exitUsage
}

func (c *cli) usage() {
	fmt.Fprintf(c.stderr, "stripectl - Stripe facility operator tool\n\n")
	fmt.Fprintf(c.stderr, "Usage:\n")
	fmt.Fprintf(c.stderr, "  stripectl sign --secret=SECRET --payload-file=FILE [--timestamp=UNIX] [--rotate-secret=SECRET]\n")
	fmt.Fprintf(c.stderr, "  stripectl verify --endpoint=NAME --header=HEADER --payload-file=FILE [--tolerance=DURATION]\n")
	fmt.Fprintf(c.stderr, "  stripectl <resource> <operation> [--id=ID] [--param key=value ...] [--limit=N]\n\n")
	fmt.Fprintf(c.stderr, "Resources and operations:\n")
	for _, name := range resourceNames() {
		fmt.Fprintf(c.stderr, "  %-14s %s\n", name, joinOperations(name))
	}
	fmt.Fprintf(c.stderr, "\nA payload file of \"-\" reads standard input.\n")
}

// readPayload reads a file, or stdin for "-". The bytes are returned
// untouched; signatures are computed over them exactly.
func (c *cli) readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(path)
}
