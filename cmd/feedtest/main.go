package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"wavescope/internal/config"
	"wavescope/internal/provider"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal(err)
	}

	symbol := cfg.Chart.Symbol
	ctx := context.Background()
	to := time.Now()
	from := to.AddDate(0, 0, -90)

	fmt.Println("=== Candle Feed Test ===")

	// 1. Each configured strategy on its own
	fmt.Printf("\n[1] Individual strategies for %s (90 days)\n", symbol)
	strategies := []provider.Provider{
		provider.NewYahooProvider(provider.YahooHostPrimary),
		provider.NewYahooProvider(provider.YahooHostMirror),
		provider.NewStooqProvider(),
		provider.NewSyntheticProvider(),
	}
	for _, p := range strategies {
		start := time.Now()
		candles, err := p.FetchDaily(ctx, symbol, from, to)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("    %s: ERROR - %v (%.1fs)\n", p.Name(), err, elapsed.Seconds())
			continue
		}
		if len(candles) == 0 {
			fmt.Printf("    %s: no data (%.1fs)\n", p.Name(), elapsed.Seconds())
			continue
		}
		last := candles[len(candles)-1]
		fmt.Printf("    %s: OK, %d candles in %s\n", p.Name(), len(candles), elapsed)
		fmt.Printf("        Last: %s O=%.2f H=%.2f L=%.2f C=%.2f V=%d\n",
			last.Time.Format("2006-01-02"), last.Open, last.High, last.Low, last.Close, last.Volume)
	}

	// 2. The fallback chain as the server runs it
	fmt.Println("\n[2] Fallback chain")
	chain := provider.NewChain(strategies...)
	start := time.Now()
	candles, err := chain.FetchDaily(ctx, symbol, from, to)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("    ERROR: %v\n", err)
	} else {
		fmt.Printf("    OK: %d candles in %s\n", len(candles), elapsed)
	}

	// 3. Cache hit timing on a repeated range
	fmt.Println("\n[3] Caching layer, repeated fetch")
	cached := provider.NewCachingProvider(chain, 5*time.Minute)
	for i := 1; i <= 2; i++ {
		start := time.Now()
		candles, err := cached.FetchDaily(ctx, symbol, from, to)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("    fetch %d: ERROR - %v\n", i, err)
			continue
		}
		fmt.Printf("    fetch %d: %d candles in %s\n", i, len(candles), elapsed)
	}

	fmt.Println("\n=== Test Complete ===")
}
