// Command logdesk-import converts a log dataset between the formats the
// desk can load: JSON, zstd-compressed JSON (.json.zst) and SQLite (.db).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"logdesk/internal/logging"
	"logdesk/internal/storage"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	var inPath, outPath, logLevel string

	flagSet := pflag.NewFlagSet("logdesk-import", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&inPath, "in", "", "dataset to read (.json, .json.zst, .db)")
	flagSet.StringVar(&outPath, "out", "", "dataset to write (.json, .json.zst, .db)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if inPath == "" || outPath == "" {
		return fmt.Errorf("both --in and --out are required")
	}
	if inPath == outPath {
		return fmt.Errorf("--in and --out must differ")
	}

	closeLog, err := logging.Init(logging.Options{Level: logLevel, Out: stderr, Console: true})
	if err != nil {
		return err
	}
	defer closeLog()

	source, err := storage.OpenSource(inPath)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", inPath, err)
	}
	defer source.Close()

	records, err := source.Load()
	if err != nil {
		return fmt.Errorf("cannot load %s: %w", inPath, err)
	}
	// Reject datasets the desk would refuse to start with
	if _, err := storage.NewStore(records); err != nil {
		return fmt.Errorf("invalid dataset %s: %w", inPath, err)
	}

	if storage.IsSQLitePath(outPath) {
		target, err := storage.NewSQLiteSource(outPath)
		if err != nil {
			return fmt.Errorf("cannot open %s: %w", outPath, err)
		}
		defer target.Close()

		if err := target.Import(records); err != nil {
			return err
		}
	} else if err := storage.WriteJSON(outPath, records); err != nil {
		return err
	}

	log.Info().Str("in", inPath).Str("out", outPath).Int("records", len(records)).Msg("dataset converted")
	return nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `logdesk-import converts a log dataset between formats.

The format of each side is chosen by extension: .db, .sqlite and .sqlite3
are SQLite databases, .zst is zstd-compressed JSON, anything else is JSON.

Usage:
  logdesk-import --in data/logs.json --out data/logs.db

Flags:
%s`, flagSet.FlagUsages())
}
