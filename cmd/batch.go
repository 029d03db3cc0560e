package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/pipeline"
	"github.com/sells-group/crm-enrich/internal/roster"
)

var (
	batchXLSXPath string
	batchForce    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich a roster of entities under the configured caps",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		entries, err := roster.ReadXLSX(batchXLSXPath)
		if err != nil {
			return eris.Wrap(err, "batch roster")
		}

		items := make([]pipeline.BatchItem, 0, len(entries))
		for _, entry := range entries {
			items = append(items, pipeline.BatchItem{
				TenantID: entry.TenantID,
				EntityID: entry.EntityID,
				Opts: pipeline.RunOptions{
					Kind:   entry.Kind,
					Domain: entry.Domain,
					Force:  batchForce,
				},
			})
		}

		result := e.Runner.RunBatch(ctx, items, e.Limits)

		zap.L().Info("batch complete",
			zap.Int("processed", result.Processed),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchXLSXPath, "xlsx", "", "path to roster spreadsheet (required)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "re-enrich entities synced inside the resync window")
	_ = batchCmd.MarkFlagRequired("xlsx")
	rootCmd.AddCommand(batchCmd)
}
