package main

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/roster"
	"github.com/sells-group/crm-enrich/internal/store"
)

var importXLSXPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Seed canonical records from an entity roster spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		entries, err := roster.ReadXLSX(importXLSXPath)
		if err != nil {
			return eris.Wrap(err, "import roster")
		}

		created, skipped := 0, 0
		for _, entry := range entries {
			ok, err := seedRecord(ctx, e.Store, entry)
			if err != nil {
				return err
			}
			if ok {
				created++
			} else {
				skipped++
			}
		}

		zap.L().Info("import complete",
			zap.Int("created", created),
			zap.Int("skipped_existing", skipped),
			zap.String("xlsx", importXLSXPath),
		)
		return nil
	},
}

// seedRecord creates a record for the entry unless one already exists.
// Imported name and domain are stored unattributed, like manual entry, so
// later enrichment runs cannot overwrite them.
func seedRecord(ctx context.Context, st store.Store, entry roster.Entry) (bool, error) {
	_, err := st.GetRecord(ctx, entry.TenantID, entry.EntityID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, eris.Wrap(err, "import: check record")
	}

	rec := model.NewCanonicalRecord(entry.TenantID, entry.EntityID, entry.Kind)
	if entry.Name != "" {
		rec.Fields["name"] = entry.Name
	}
	if entry.Domain != "" {
		rec.Fields["domain"] = entry.Domain
	}
	if err := st.PutRecord(ctx, rec); err != nil {
		return false, eris.Wrap(err, "import: put record")
	}
	return true, nil
}

func init() {
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to roster spreadsheet (required)")
	_ = importCmd.MarkFlagRequired("xlsx")
	rootCmd.AddCommand(importCmd)
}
