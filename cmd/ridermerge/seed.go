package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/okian/ridermerge/internal/seed"
	"github.com/okian/ridermerge/pkg/logger"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	cfg := seed.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the store with a synthetic rider population",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := seed.Run(cmd.Context(), store, cfg, seed.WithLogger(logger.Named("seed")))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color.NoColor = !shouldColorize(out)
			rows := make([][]string, 0, len(seed.Kinds())+1)
			rows = append(rows, []string{string(seed.KindBase), fmt.Sprint(stats.ByKind[seed.KindBase])})
			for _, k := range seed.Kinds() {
				rows = append(rows, []string{string(k), fmt.Sprint(stats.ByKind[k])})
			}
			fmt.Fprintln(out, color.GreenString("seeded %d riders with %d results in %s",
				stats.Riders, stats.Results, stats.Duration.Round(time.Millisecond)))
			fmt.Fprintln(out, renderTable([]string{"Kind", "Riders"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.Riders, "riders", cfg.Riders, "Number of distinct base riders")
	cmd.Flags().Float64Var(&cfg.DuplicateRate, "duplicate-rate", cfg.DuplicateRate, "Share of base riders that get a duplicate")
	cmd.Flags().IntVar(&cfg.MaxResults, "max-results", cfg.MaxResults, "Maximum results per base rider")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	return cmd
}
