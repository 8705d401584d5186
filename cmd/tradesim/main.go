// Command tradesim manages a simulated portfolio stored in a local file.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	flag.StringVar(&globals.dataFile, "data", envOr("DATA_FILE", "tradesim.json"), "portfolio data file")
	flag.StringVar(&globals.key, "key", envOr("STORAGE_KEY", "tradesim-nse-storage"), "storage key inside the data file")
	flag.StringVar(&globals.quotesFile, "quotes", os.Getenv("QUOTES_FILE"), "JSON quotes file used for market prices")
	flag.StringVar(&globals.currency, "currency", "INR", "currency used to display amounts")
	verbose := flag.Bool("v", false, "log ledger operations to stderr")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "portfolio")
	}

	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	os.Exit(int(commander.Execute(context.Background())))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
