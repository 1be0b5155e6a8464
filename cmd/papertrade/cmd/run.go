package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/papertrade/config"
	"github.com/rustyeddy/papertrade/engine"
	"github.com/rustyeddy/papertrade/history"
	"github.com/rustyeddy/papertrade/ledger"
	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/order"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/sim"
	"github.com/rustyeddy/papertrade/venue"
)

var (
	runConfigPath string
	runBarsPath   string
	runOrdersPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a bar file and execute a batch of orders against it",
	Long: `Run loads historical bars, submits the orders listed in the orders
file through the risk gate and fill simulator, then prints the final
positions, realized P&L and reconciliation report.

Orders file columns: time,symbol,side,type,quantity[,limit_price]`,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "papertrade.yaml", "path to config file")
	runCmd.Flags().StringVarP(&runBarsPath, "bars", "b", "", "path to bars CSV (time,symbol,open,high,low,close,volume) (required)")
	runCmd.Flags().StringVarP(&runOrdersPath, "orders", "o", "", "path to orders CSV (required)")

	runCmd.MarkFlagRequired("bars")
	runCmd.MarkFlagRequired("orders")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	bars, err := market.LoadBarsCSV(runBarsPath)
	if err != nil {
		return err
	}

	provider := market.NewMemoryProvider()
	for symbol, bs := range bars {
		provider.AddBars(symbol, bs...)
		last := bs[len(bs)-1]
		provider.SetQuote(market.Quote{
			Symbol: symbol,
			Bid:    last.Close,
			Ask:    last.Close,
			Time:   last.Time,
		})
	}

	eng, err := buildEngine(cfg, provider, log)
	if err != nil {
		return err
	}
	eng.SetBalance(cfg.Account.Owner, cfg.Account.Balance)

	reqs, err := loadOrdersCSV(runOrdersPath, cfg.Account.Owner)
	if err != nil {
		return err
	}

	ctx := context.Background()
	multiVenue := len(cfg.Venues) > 1

	for _, req := range reqs {
		if multiVenue {
			results, err := eng.DistributeOrder(ctx, cfg.Account.Owner, req, cfg.Weights())
			if err != nil {
				return err
			}
			for name, res := range results {
				describeResult(name, res.Status, res.Fill, res.Reason, res.Err)
			}
			continue
		}

		rec, err := eng.SubmitOrder(ctx, cfg.Account.Owner, req)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s %s %g %s: %s %s\n",
			rec.Symbol, rec.Side, rec.Type, rec.Quantity, rec.OrderID, rec.Status, rec.Reason)
	}

	return printSummary(ctx, eng, cfg)
}

func describeResult(name string, status order.Status, fill *order.Fill, reason string, err error) {
	switch {
	case err != nil:
		fmt.Printf("  venue %s: error: %v\n", name, err)
	case fill != nil:
		fmt.Printf("  venue %s: filled %g @ %.4f\n", name, fill.Quantity, fill.Price)
	default:
		fmt.Printf("  venue %s: %s %s\n", name, status, reason)
	}
}

func buildEngine(cfg *config.Config, provider *market.MemoryProvider, log *zap.Logger) (*engine.Engine, error) {
	gate := risk.NewGate(log,
		risk.PositionSizeLimit{MaxNotionalUSD: cfg.Risk.MaxNotionalUSD, MaxBalancePct: cfg.Risk.MaxPositionPct},
		risk.DrawdownLimit{MaxPct: cfg.Risk.MaxDrawdownPct},
		risk.DailyLossLimit{MaxPct: cfg.Risk.MaxDailyLossPct},
		risk.TradeCountLimit{MaxTrades: cfg.Risk.MaxTradesPerDay},
		risk.ExposureLimit{MaxPct: cfg.Risk.MaxExposurePct},
	)
	gate.UpdateMetrics(cfg.Account.Balance, false, time.Now().UTC())

	simulator := sim.New(provider, cfg.Sim.CommissionRate, cfg.Sim.WindowSize, log)

	var repo ledger.Repository
	var store history.Store
	if cfg.Storage.Type == "sqlite" {
		sqlRepo, err := ledger.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		sqlStore, err := history.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		repo, store = sqlRepo, sqlStore
	} else {
		repo, store = ledger.NewMemoryRepository(), history.NewMemoryStore()
	}

	registry := venue.NewRegistry()
	for _, vc := range cfg.Venues {
		pv := venue.NewPaper(vc.Name, simulator, cfg.Account.Balance, cfg.Account.Currency, log)
		if err := registry.Register(pv); err != nil {
			return nil, err
		}
	}

	return engine.New(engine.Options{
		Gate:         gate,
		Simulator:    simulator,
		Ledger:       ledger.New(repo, log),
		History:      store,
		Quotes:       provider,
		Registry:     registry,
		VenueTimeout: config.VenueTimeout,
		Log:          log,
	})
}

func printSummary(ctx context.Context, eng *engine.Engine, cfg *config.Config) error {
	owner := cfg.Account.Owner

	val, err := eng.GetPortfolioValuation(ctx, owner)
	if err != nil {
		return err
	}
	fmt.Printf("\ncash %.2f  positions %.2f  unrealized %.2f  total %.2f\n",
		val.Cash, val.PositionsValue, val.UnrealizedPL, val.Total)

	trades, err := eng.GetProcessedTrades(owner)
	if err != nil {
		return err
	}
	for _, t := range trades {
		fmt.Printf("round trip %s %g: %.4f -> %.4f  pl %.2f  fees %.2f\n",
			t.Symbol, t.Quantity, t.EntryPrice, t.ExitPrice, t.RealizedPL, t.Commission)
	}
	fmt.Printf("realized pl %.2f\n", history.TotalRealizedPL(trades))

	report, err := eng.Reconcile(ctx, owner)
	if err != nil {
		return err
	}
	if report.Clean() {
		fmt.Println("reconciliation clean")
	} else {
		for _, d := range report.Discrepancies {
			fmt.Printf("discrepancy %s %s %s expected %g actual %g\n",
				d.Venue, d.Symbol, d.Kind, d.Expected, d.Actual)
		}
	}
	return nil
}

// loadOrdersCSV parses order rows: time,symbol,side,type,quantity[,limit_price].
func loadOrdersCSV(path, owner string) ([]order.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open orders file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []order.Request
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read orders csv: %w", err)
		}
		line++

		if len(rec) < 5 || rec[0] == "time" {
			continue
		}

		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("orders csv line %d: bad time %q: %w", line, rec[0], err)
		}
		qty, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("orders csv line %d: bad quantity %q: %w", line, rec[4], err)
		}

		opts := []order.Option{order.WithCreatedAt(ts)}
		if len(rec) > 5 && rec[5] != "" {
			limit, err := strconv.ParseFloat(rec[5], 64)
			if err != nil {
				return nil, fmt.Errorf("orders csv line %d: bad limit price %q: %w", line, rec[5], err)
			}
			opts = append(opts, order.WithLimitPrice(limit))
		}

		req, err := order.New(owner, rec[1], order.Side(rec[2]), order.Type(rec[3]), qty, opts...)
		if err != nil {
			return nil, fmt.Errorf("orders csv line %d: %w", line, err)
		}
		out = append(out, req)
	}
	return out, nil
}
