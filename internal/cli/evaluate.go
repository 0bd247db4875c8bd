package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/store"
)

var (
	evalFixture string
	evalSurface string
	evalMax     int
	evalDB      string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate surfaces once against a fixture",
	Long: "Run one selection pass locally and print the results as JSON. With --db, cooldowns persist " +
		"in that database across runs; without it every run starts fresh.",
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalFixture, "fixture", "", "YAML fixture with the signals to evaluate")
	evaluateCmd.Flags().StringVar(&evalSurface, "surface", "", "Evaluate only this surface")
	evaluateCmd.Flags().IntVar(&evalMax, "max", 0, "Result cap; 0 uses the surface's max_results, negative returns nothing")
	evaluateCmd.Flags().StringVar(&evalDB, "db", "", "SQLite database holding cooldown state")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	fixture, err := loadFixture(evalFixture)
	if err != nil {
		return err
	}

	clock := time.Now
	if fixture != nil && fixture.Now != nil {
		now := *fixture.Now
		clock = func() time.Time { return now }
	}

	var kv store.KV = store.NewMemKV()
	var db *store.DB
	if evalDB != "" {
		if db, err = store.Open(evalDB); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		kv = db
	}

	a, err := wireFixture(cfg, kv, db, clock, fixture)
	if err != nil {
		return err
	}

	var results []engine.Result
	if evalSurface != "" {
		res, ok := a.host.Evaluate(evalSurface, evalMax)
		if !ok {
			return fmt.Errorf("unknown surface %q", evalSurface)
		}
		results = append(results, res)
	} else {
		for _, sc := range cfg.Surfaces {
			res, _ := a.host.Evaluate(sc.Name, evalMax)
			results = append(results, res)
		}
	}

	if n := a.cooldowns.Flush(); n > 0 {
		return fmt.Errorf("%d cooldown writes could not be persisted", n)
	}
	return printJSON(cmd.OutOrStdout(), results)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
