// draftctl inspects and repairs the local declaration draft database.
//
//	draftctl [--db path] list
//	draftctl [--db path] show <userKey>
//	draftctl [--db path] clear <userKey>
//	draftctl [--db path] suppressed
//	draftctl [--db path] unsuppress <userKey>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"dials/internal/draft/kv"
	"dials/internal/draft/store"
	"dials/internal/platform/config"
	"dials/internal/platform/logger"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.ClientFromEnv()

	var (
		dbPath   string
		logLevel string
	)
	flagSet := pflag.NewFlagSet("draftctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&dbPath, "db", cfg.DraftDBPath, "path to the SQLite draft database")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level for storage diagnostics")
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "usage: draftctl [flags] list|show <userKey>|clear <userKey>|suppressed|unsuppress <userKey>")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}

	backend, err := kv.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	log := logger.NewWithWriter(stderr, config.Log{Level: logLevel, Format: "text"})
	drafts := store.New(backend, store.WithLogger(log))
	c := &commands{kv: backend, drafts: drafts, out: stdout}

	cmd, operands := rest[0], rest[1:]
	switch cmd {
	case "list":
		return c.list(ctx)
	case "suppressed":
		return c.suppressed(ctx)
	case "show", "clear", "unsuppress":
		if len(operands) != 1 {
			return fmt.Errorf("%s needs exactly one user key", cmd)
		}
		switch cmd {
		case "show":
			return c.show(ctx, operands[0])
		case "clear":
			return c.clear(ctx, operands[0])
		default:
			return c.unsuppress(ctx, operands[0])
		}
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type commands struct {
	kv     kv.Lister
	drafts *store.Store
	out    io.Writer
}

func (c *commands) list(ctx context.Context) error {
	keys := c.drafts.UserKeys(ctx)
	if len(keys) == 0 {
		fmt.Fprintln(c.out, "no drafts")
		return nil
	}
	for _, key := range keys {
		rec := c.drafts.Load(ctx, key)
		if rec == nil {
			continue
		}
		step := string(rec.LastStep)
		if step == "" {
			step = "-"
		}
		flag := ""
		if c.drafts.IsSuppressed(ctx, key) {
			flag = " (server copy suppressed)"
		}
		fmt.Fprintf(c.out, "%s\t%s\t%s%s\n", key, step, rec.UpdatedAt.UTC().Format(time.RFC3339), flag)
	}
	return nil
}

func (c *commands) show(ctx context.Context, userKey string) error {
	rec := c.drafts.Load(ctx, userKey)
	if rec == nil {
		return fmt.Errorf("no draft for %q", userKey)
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(out))
	return err
}

func (c *commands) clear(ctx context.Context, userKey string) error {
	if c.drafts.Load(ctx, userKey) == nil {
		return fmt.Errorf("no draft for %q", userKey)
	}
	c.drafts.Clear(ctx, userKey)
	fmt.Fprintf(c.out, "cleared %s\n", userKey)
	return nil
}

func (c *commands) suppressed(ctx context.Context) error {
	keys, err := c.kv.Keys(ctx, store.SuppressPrefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(c.out, "no suppression markers")
		return nil
	}
	for _, key := range keys {
		fmt.Fprintln(c.out, strings.TrimPrefix(key, store.SuppressPrefix))
	}
	return nil
}

func (c *commands) unsuppress(ctx context.Context, userKey string) error {
	if !c.drafts.IsSuppressed(ctx, userKey) {
		return fmt.Errorf("%q is not suppressed", userKey)
	}
	c.drafts.ClearSuppressed(ctx, userKey)
	fmt.Fprintf(c.out, "unsuppressed %s\n", userKey)
	return nil
}
