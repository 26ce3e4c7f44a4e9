package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"wavescope/internal/chart"
	"wavescope/internal/config"
	"wavescope/internal/metrics"
	"wavescope/internal/provider"
	"wavescope/internal/refresh"
	"wavescope/internal/scanner"
	"wavescope/internal/watchlist"
	"wavescope/internal/wave"
	"wavescope/internal/web"
	"wavescope/pkg/model"
)

var (
	cfgFile   string
	port      int
	symbol    string
	dataDir   string
	backend   string
	noRefresh bool

	p0, p1, p2, p3 float64
	price          float64
	ratioVal       float64

	days      int
	workers   int
	maWindow  int
	volWindow int
	autoPivot bool
	format    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wavescope",
		Short: "Candlestick charting with Elliott wave projection",
		Long: `Wavescope serves an interactive daily-candle chart with Fibonacci wave
projection, and exposes the same engine as terminal commands:

Commands:
  serve      - run the chart web server
  calc       - project wave targets from three pivot prices
  analyze    - fetch recent candles and report overlay signals
  watchlist  - show or edit the tracked symbol list

Examples:
  wavescope serve --port 8088
  wavescope calc --p0 100 --p1 150 --p2 120 --ratio 0.618
  wavescope analyze AAPL MSFT --days 120
  wavescope watchlist add AAPL "Apple Inc."`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chart web server",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 8088, "HTTP listen port")
	serveCmd.Flags().StringVar(&symbol, "symbol", "", "default chart symbol")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "", "directory for persisted state")
	serveCmd.Flags().StringVar(&backend, "backend", "", "watchlist store: file, sqlite")
	serveCmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "disable the periodic watchlist refresh")

	calcCmd := &cobra.Command{
		Use:   "calc",
		Short: "Project wave targets from three pivot prices",
		RunE:  runCalc,
	}
	calcCmd.Flags().Float64Var(&p0, "p0", 0, "wave start price (pivot low)")
	calcCmd.Flags().Float64Var(&p1, "p1", 0, "wave-1 peak price (pivot high)")
	calcCmd.Flags().Float64Var(&p2, "p2", 0, "wave-2 bottom price (pivot low)")
	calcCmd.Flags().Float64Var(&p3, "p3", 0, "observed wave-3 peak (optional)")
	calcCmd.Flags().Float64Var(&price, "price", 0, "current price for target distances (optional)")
	calcCmd.Flags().Float64Var(&ratioVal, "ratio", 0.618, "wave-4 retracement ratio: 0.382, 0.5, 0.618")
	calcCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [symbols...]",
		Short: "Fetch recent candles and report overlay signals",
		Long: `Analyze fetches daily candles for the given symbols (default: the
watchlist, then the configured chart symbol) and reports the moving
average, volume behavior and the most recent trend signal per symbol.`,
		RunE: runAnalyze,
	}
	analyzeCmd.Flags().IntVar(&days, "days", 120, "history span in calendar days")
	analyzeCmd.Flags().IntVar(&workers, "workers", 4, "number of parallel workers")
	analyzeCmd.Flags().IntVar(&maWindow, "ma", 0, "moving-average window in bars")
	analyzeCmd.Flags().IntVar(&volWindow, "vol", 0, "volume-average window in bars")
	analyzeCmd.Flags().BoolVar(&autoPivot, "auto-pivot", false, "detect swing pivots and project wave targets")
	analyzeCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")

	watchlistCmd := &cobra.Command{
		Use:   "watchlist [add|remove|show] [symbol] [name]",
		Short: "Show or edit the tracked symbol list",
		RunE:  runWatchlist,
	}

	rootCmd.AddCommand(serveCmd, calcCmd, analyzeCmd, watchlistCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Override config with CLI flags
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if symbol != "" {
		cfg.Chart.Symbol = strings.ToUpper(symbol)
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if backend != "" {
		cfg.Data.Backend = backend
	}
	if noRefresh {
		cfg.Refresh.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	feed, err := buildFeed(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := watchlist.Open(store)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics()
	srv := web.NewServer(cfg, feed, list, m)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var refresher *refresh.Refresher
	if cfg.Refresh.Enabled {
		refresher = refresh.New(ctx, feed, list, srv.Hub(), srv, m)
		if cfg.Refresh.MarketHours {
			refresher.LimitToMarketHours()
		}
		if err := refresher.Register(cfg.Refresh.Spec); err != nil {
			return err
		}
		refresher.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Port)
	}()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-sigChan:
		fmt.Println("\nShutting down...")
	}

	if refresher != nil {
		refresher.Stop()
	}
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	return srv.Shutdown(shutCtx)
}

func runCalc(cmd *cobra.Command, args []string) error {
	for _, name := range []string{"p0", "p1", "p2"} {
		if !cmd.Flags().Changed(name) {
			return fmt.Errorf("--%s is required", name)
		}
	}
	ratio, err := wave.ParseRatio(ratioVal)
	if err != nil {
		return err
	}

	in := wave.Input{P0: p0, P1: p1, P2: p2, Ratio: ratio, Price: price}
	if cmd.Flags().Changed("p3") {
		in.P3 = p3
		in.HasP3 = true
	}
	res := wave.Compute(in)

	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	}

	if !res.Valid {
		fmt.Printf("Invalid wave structure: %s\n", res.Reason)
		return nil
	}

	fmt.Printf("Wave 1 height: %.2f | Wave 2 retrace: %.1f%%\n\n", res.Wave1Height, res.Wave2RetracePct)

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Level", "Price"}),
	)
	for _, lvl := range wave.Levels(res) {
		table.Append([]string{lvl.Label, fmt.Sprintf("%.2f", lvl.Price)})
	}
	table.Render()

	if res.Price > 0 {
		fmt.Printf("\nFrom %.2f: %+.1f%% to W4, %+.1f%% to W5\n",
			res.Price,
			(res.Wave4Target-res.Price)/res.Price*100,
			(res.Wave5Target-res.Price)/res.Price*100)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	feed, err := buildFeed(cfg)
	if err != nil {
		return err
	}

	symbols := make([]string, 0, len(args))
	for _, a := range args {
		if s := strings.ToUpper(strings.TrimSpace(a)); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		// Fall back to the watchlist, then the configured default symbol.
		if store, err := openStore(cfg); err == nil {
			if list, err := watchlist.Open(store); err == nil {
				symbols = list.Symbols()
			}
			store.Close()
		}
	}
	if len(symbols) == 0 {
		symbols = []string{cfg.Chart.Symbol}
	}

	overlayCfg := chart.OverlayConfig{MAWindow: cfg.Chart.MAWindow, VolWindow: cfg.Chart.VolWindow}
	if cmd.Flags().Changed("ma") {
		overlayCfg.MAWindow = maWindow
	}
	if cmd.Flags().Changed("vol") {
		overlayCfg.VolWindow = volWindow
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted. Stopping analysis...")
		cancel()
	}()

	fmt.Printf("Analyzing %d symbols over %d days...\n\n", len(symbols), days)

	s := scanner.NewScanner(feed, overlayCfg, days, workers, 5*time.Minute)
	if autoPivot {
		ratio, err := wave.ParseRatio(cfg.Chart.Ratio)
		if err != nil {
			return err
		}
		s.EnableAutoPivot(ratio)
	}

	// Setup progress bar
	bar := progressbar.NewOptions(len(symbols),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Fetching"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	s.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})

	summary, err := s.Scan(ctx, symbols)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	bar.Finish()
	fmt.Println()

	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}
	outputAnalysisTable(summary)
	return nil
}

func outputAnalysisTable(summary *scanner.Summary) {
	reports := summary.Reports
	if len(reports) == 0 {
		fmt.Println("No symbols analyzed.")
		fmt.Printf("Scanned %d symbols in %s\n", summary.TotalScanned, summary.ScanTime.Round(time.Second))
		return
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Symbol < reports[j].Symbol
	})

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Close", "Chg", "MA", "Bias", "Vol", "Signal"}),
	)
	for _, r := range reports {
		ma, bias := "-", "-"
		if r.HasMA {
			ma = fmt.Sprintf("%.2f", r.MA)
			bias = fmt.Sprintf("%+.1f%%", r.BiasPct)
		}
		vol := "-"
		if r.VolRatio > 0 {
			vol = fmt.Sprintf("%.1fx", r.VolRatio)
			if r.Anomaly {
				vol += "!"
			}
		}
		signal := "-"
		if r.Signal != "" {
			signal = r.Signal
			if r.SignalAge > 0 {
				signal = fmt.Sprintf("%s (-%d)", r.Signal, r.SignalAge)
			}
		}
		table.Append([]string{
			r.Symbol,
			fmt.Sprintf("%.2f", r.Close),
			fmt.Sprintf("%+.1f%%", r.ChangePct),
			ma,
			bias,
			vol,
			signal,
		})
	}
	table.Render()

	// Print range details for symbols with a live signal
	count := 0
	for _, r := range reports {
		if r.Signal == "" {
			continue
		}
		if count == 0 {
			fmt.Println("\n--- Signal Details ---")
		}
		if count >= 5 {
			break
		}
		fmt.Printf("\n[%s] %s, %d bars ago\n", r.Symbol, r.Signal, r.SignalAge)
		fmt.Printf("  Close: %.2f | Range: %.2f - %.2f\n", r.Close, r.RangeLow, r.RangeHigh)
		if r.VolRatio > 0 {
			note := ""
			if r.Anomaly {
				note = " (above average)"
			}
			fmt.Printf("  Volume: %.1fx avg%s\n", r.VolRatio, note)
		}
		count++
	}

	printed := false
	for _, r := range reports {
		if r.Projection == nil {
			continue
		}
		if !printed {
			fmt.Println("\n--- Wave Projections ---")
			printed = true
		}
		p := r.Projection
		fmt.Printf("[%s] W3 %.2f | W4 %.2f | W5 %.2f (pivots %s)\n",
			r.Symbol, p.Wave3Peak, p.Wave4Target, p.Wave5Target, strings.Join(r.PivotDates, " "))
	}

	for _, f := range summary.Failures {
		fmt.Printf("skipped %s: %s\n", f.Symbol, f.Err)
	}
	fmt.Printf("\nScanned %d symbols in %s\n", summary.TotalScanned, summary.ScanTime.Round(time.Second))
}

func runWatchlist(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := watchlist.Open(store)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		outputWatchlistTable(list)
		return nil
	}

	switch args[0] {
	case "show":
		outputWatchlistTable(list)
		return nil
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: wavescope watchlist add SYMBOL [NAME]")
		}
		stock := model.Stock{Symbol: args[1], Name: strings.Join(args[2:], " ")}
		if err := list.Add(stock); err != nil {
			return fmt.Errorf("adding %s: %w", strings.ToUpper(args[1]), err)
		}
		fmt.Printf("Added %s (%d tracked)\n", strings.ToUpper(args[1]), list.Len())
		return nil
	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: wavescope watchlist remove SYMBOL")
		}
		if err := list.Remove(args[1]); err != nil {
			return fmt.Errorf("removing %s: %w", strings.ToUpper(args[1]), err)
		}
		fmt.Printf("Removed %s (%d tracked)\n", strings.ToUpper(args[1]), list.Len())
		return nil
	default:
		return fmt.Errorf("unknown watchlist action %q (use add, remove or show)", args[0])
	}
}

func outputWatchlistTable(list *watchlist.Watchlist) {
	stocks := list.All()
	if len(stocks) == 0 {
		fmt.Println("Watchlist is empty.")
		return
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Name"}),
	)
	for _, s := range stocks {
		table.Append([]string{s.Symbol, s.Name})
	}
	table.Render()
	fmt.Printf("\n%d symbols tracked\n", len(stocks))
}

// buildFeed assembles the ordered fetch chain from the configured strategy
// tokens, wrapped in a shared cache when a TTL is set.
func buildFeed(cfg *config.Config) (provider.Provider, error) {
	var strategies []provider.Provider
	for _, name := range cfg.Feed.Providers {
		switch name {
		case "yahoo":
			strategies = append(strategies, provider.NewYahooProvider(provider.YahooHostPrimary))
		case "yahoo-mirror":
			strategies = append(strategies, provider.NewYahooProvider(provider.YahooHostMirror))
		case "stooq":
			strategies = append(strategies, provider.NewStooqProvider())
		case "synthetic":
			strategies = append(strategies, provider.NewSyntheticProvider())
		case "finnhub":
			strategies = append(strategies, provider.NewFinnhubProvider(cfg.Feed.Finnhub.Key, cfg.Feed.Finnhub.RateLimit))
		case "alphavantage":
			strategies = append(strategies, provider.NewAlphaVantageProvider(cfg.Feed.AlphaVantage.Key, cfg.Feed.AlphaVantage.RateLimit))
		default:
			return nil, fmt.Errorf("unknown feed provider %q", name)
		}
	}

	chain := provider.NewChain(strategies...)
	if !chain.IsAvailable() {
		return nil, fmt.Errorf("no available data strategies")
	}
	if cfg.Feed.CacheTTL > 0 {
		return provider.NewCachingProvider(chain, cfg.Feed.CacheTTL), nil
	}
	return chain, nil
}

func openStore(cfg *config.Config) (watchlist.Store, error) {
	switch cfg.Data.Backend {
	case "sqlite":
		if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return watchlist.NewSQLiteStore(filepath.Join(cfg.Data.Dir, "watchlist.db"))
	default:
		return watchlist.NewFileStore(cfg.Data.Dir)
	}
}
