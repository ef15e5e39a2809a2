// Synthetic transaction generator for exercising Kestrel's simulation API.
//
// Usage:
//   go run cmd/datagen/main.go -count 500 -seed 42 -out data/transactions.json
//
// The output file is a valid /simulation/batch request body: mostly normal
// retail traffic with an 8-12% slice of fraud-leaning items (high amounts,
// night hours, young unverified accounts).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/opensource-finance/kestrel/internal/datagen"
)

func main() {
	cfg := datagen.DefaultConfig()
	var (
		count       = flag.Int("count", cfg.Count, "number of transactions to generate")
		customers   = flag.Int("customers", cfg.CustomerPool, "distinct customer id pool size")
		windowDays  = flag.Int("window-days", int(cfg.Window/(24*time.Hour)), "timestamp spread in days")
		seed        = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		output      = flag.String("out", "data/transactions.json", "output file path")
		writeStdout = flag.Bool("stdout", false, "write the batch to stdout instead of a file")
	)
	flag.Parse()

	genCfg := datagen.Config{
		Count:        *count,
		CustomerPool: *customers,
		Window:       time.Duration(*windowDays) * 24 * time.Hour,
		Seed:         *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := datagen.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write batch to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := datagen.Write(dataset, *output); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write batch: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d transactions into %s\n", len(dataset.Transactions), *output)
	fmt.Fprintf(os.Stdout, "Score them with: curl -X POST http://localhost:8080/simulation/batch -d @%s\n", *output)
}
