package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/portfolio"
)

var commands = []subcommands.Command{
	&initCmd{},
	&tradeCmd{side: "buy"},
	&tradeCmd{side: "sell"},
	&cashCmd{direction: "deposit"},
	&cashCmd{direction: "withdraw"},
	&showCmd{},
	&historyCmd{},
}

var stdout io.Writer = os.Stdout

// report prints the outcome of an operation and maps it to an exit status.
func report(res ledger.Result, err error) subcommands.ExitStatus {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, res.Message)
	if !res.Success {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func parseAmount(raw, name string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("-%s is required", name)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid -%s %q: %w", name, raw, err)
	}
	return v, nil
}

// --- init ---

type initCmd struct {
	cash string
}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create the portfolio with starting cash" }
func (*initCmd) Usage() string {
	return `init [-cash <amount>]

  Sets the starting cash of a new portfolio. Has no effect on a portfolio
  that already exists.
`
}

func (c *initCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.cash, "cash", defaultCash.String(), "starting cash")
}

func (c *initCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := parseAmount(c.cash, "cash")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	svc, err := openService(ctx, amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return report(svc.Initialize(ctx, amount))
}

// --- buy / sell ---

type tradeCmd struct {
	side   string
	symbol string
	qty    int64
	price  string
}

func (c *tradeCmd) Name() string { return c.side }
func (c *tradeCmd) Synopsis() string {
	return c.side + " shares at a given or quoted price"
}
func (c *tradeCmd) Usage() string {
	return c.side + ` -symbol <symbol> -qty <shares> [-price <price>]

  Without -price the current price is read from the -quotes file.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "ticker symbol (required)")
	f.Int64Var(&c.qty, "qty", 0, "number of shares (required)")
	f.StringVar(&c.price, "price", "", "price per share")
}

func (c *tradeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" || c.qty == 0 {
		fmt.Fprintln(os.Stderr, "Error: -symbol and -qty are required.")
		return subcommands.ExitUsageError
	}

	svc, err := openService(ctx, defaultCash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	var price decimal.Decimal
	if c.price != "" {
		if price, err = parseAmount(c.price, "price"); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	} else {
		q, err := svc.Quote(ctx, c.symbol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: no price for %s: %v\n", strings.ToUpper(c.symbol), err)
			return subcommands.ExitFailure
		}
		price = q.Price
	}

	if c.side == "sell" {
		return report(svc.Sell(ctx, c.symbol, c.qty, price))
	}
	return report(svc.Buy(ctx, c.symbol, c.qty, price))
}

// --- deposit / withdraw ---

type cashCmd struct {
	direction string
	amount    string
}

func (c *cashCmd) Name() string     { return c.direction }
func (c *cashCmd) Synopsis() string { return c.direction + " cash" }
func (c *cashCmd) Usage() string {
	return c.direction + " -amount <amount>\n"
}

func (c *cashCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.amount, "amount", "", "amount of cash (required)")
}

func (c *cashCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := parseAmount(c.amount, "amount")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	svc, err := openService(ctx, defaultCash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.direction == "withdraw" {
		return report(svc.WithdrawCash(ctx, amount))
	}
	return report(svc.AddCash(ctx, amount))
}

// --- show ---

type showCmd struct{}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "show cash, holdings and valuation" }
func (*showCmd) Usage() string {
	return `show

  Prints the cash balance and every holding. With -quotes, holdings are
  marked to market.
`
}
func (*showCmd) SetFlags(*flag.FlagSet) {}

func (*showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, err := openService(ctx, defaultCash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := writeShow(ctx, stdout, svc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeShow(ctx context.Context, w io.Writer, svc *portfolio.Service) error {
	if !svc.Snapshot().Initialized() {
		return errors.New("portfolio not initialized, run init first")
	}

	v, err := svc.Valuation(ctx)
	if err != nil {
		return err
	}
	cur := globals.currency

	fmt.Fprintf(w, "Cash:           %s\n", formatAmount(v.Cash, cur))
	fmt.Fprintf(w, "Holdings value: %s\n", formatAmount(v.HoldingsValue, cur))
	fmt.Fprintf(w, "Total value:    %s\n", formatAmount(v.TotalValue, cur))
	fmt.Fprintf(w, "Unrealized P&L: %s\n", formatAmount(v.UnrealizedPnL, cur))
	fmt.Fprintf(w, "Realized P&L:   %s\n", formatAmount(v.RealizedPnL, cur))

	if len(v.Positions) == 0 {
		fmt.Fprintln(w, "\nNo holdings.")
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG PRICE\tPRICE\tMARKET VALUE\tP&L")
	for _, p := range v.Positions {
		price := "n/a"
		if p.Quoted {
			price = formatAmount(p.CurrentPrice, cur)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			p.Symbol, p.Quantity,
			formatAmount(p.AvgPrice, cur), price,
			formatAmount(p.MarketValue, cur), formatAmount(p.UnrealizedPnL, cur))
	}
	return tw.Flush()
}

// --- history ---

type historyCmd struct {
	start string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list transactions and the running cash balance" }
func (*historyCmd) Usage() string {
	return `history [-start <amount>]

  Lists every trade, oldest first, with the cash balance after it,
  measured from the -start balance.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", defaultCash.String(), "starting cash the history is measured from")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	start, err := parseAmount(c.start, "start")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	svc, err := openService(ctx, start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := writeHistory(stdout, svc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeHistory(w io.Writer, svc *portfolio.Service) error {
	cur := globals.currency
	points := svc.CashHistory()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTIME\tSIDE\tSYMBOL\tQTY\tPRICE\tCASH")
	fmt.Fprintf(tw, "%s\t\t\t\t\t\t%s\n", points[0].Label, formatAmount(points[0].Cash, cur))

	// CashHistory orders by timestamp; transactions are already appended
	// in time order, so point i+1 belongs to transaction i.
	txs := svc.Snapshot().Transactions
	for i, p := range points[1:] {
		tx := txs[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			i+1, tx.Timestamp.Local().Format("2006-01-02 15:04"), tx.Type, tx.Symbol,
			tx.Quantity, formatAmount(tx.Price, cur), formatAmount(p.Cash, cur))
	}
	return tw.Flush()
}
