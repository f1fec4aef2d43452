package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/ridermerge/internal/app"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOutput bool
	var aliases map[string]string
	var keepApart []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one merge batch and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := parseKeepApart(keepApart)
			if err != nil {
				return err
			}
			svc, err := ctx.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Stop(context.WithoutCancel(cmd.Context())) }()

			report, err := svc.RunBatch(cmd.Context(), service.BatchOptions{
				DryRun:    dryRun,
				Overrides: service.Overrides{NameAliases: aliases, KeepApart: sets},
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			_, err = fmt.Fprint(out, renderReport(report, shouldColorize(out)))
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan merges without writing anything")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	cmd.Flags().StringToStringVar(&aliases, "alias", nil, "Name alias for this batch, e.g. --alias bill=william")
	cmd.Flags().StringArrayVar(&keepApart, "keep-apart", nil, "Rider ids that must not merge, e.g. --keep-apart 12,40")
	return cmd
}

// parseKeepApart turns "1,3" style flag values into id sets.
func parseKeepApart(values []string) ([][]int64, error) {
	sets := make([][]int64, 0, len(values))
	for _, v := range values {
		parts := strings.Split(v, ",")
		set := make([]int64, 0, len(parts))
		for _, p := range parts {
			id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("keep-apart %q: %w", v, err)
			}
			set = append(set, id)
		}
		if len(set) < 2 {
			return nil, fmt.Errorf("keep-apart %q: need at least two rider ids", v)
		}
		sets = append(sets, set)
	}
	return sets, nil
}
