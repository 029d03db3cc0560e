package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	advisoryTenant string
	advisoryEntity string
	advisoryStage  string
	advisoryParams []string
)

var advisoryCmd = &cobra.Command{
	Use:   "advisory",
	Short: "Generate or fetch a cached AI advisory for an entity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		params := make(map[string]string, len(advisoryParams))
		for _, p := range advisoryParams {
			k, v, ok := strings.Cut(p, "=")
			if !ok || k == "" {
				return eris.Errorf("invalid --param %q, expected key=value", p)
			}
			params[k] = v
		}

		result, err := e.Advisory.Generate(ctx, advisoryTenant, advisoryEntity, advisoryStage, params)
		if err != nil {
			return eris.Wrap(err, "advisory")
		}

		zap.L().Info("advisory resolved",
			zap.Bool("cache_hit", result.CacheHit),
			zap.Bool("recent", result.Recent),
			zap.Bool("rate_limited", result.RateLimited),
			zap.Bool("deduped", result.Deduped),
		)

		out, err := json.MarshalIndent(result.Payload, "", "  ")
		if err != nil {
			return eris.Wrap(err, "advisory: marshal payload")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	advisoryCmd.Flags().StringVar(&advisoryTenant, "tenant", "", "tenant ID (required)")
	advisoryCmd.Flags().StringVar(&advisoryEntity, "entity", "", "entity ID (required)")
	advisoryCmd.Flags().StringVar(&advisoryStage, "stage", "", "deal stage (required)")
	advisoryCmd.Flags().StringArrayVar(&advisoryParams, "param", nil, "advisory parameter as key=value (repeatable)")
	_ = advisoryCmd.MarkFlagRequired("tenant")
	_ = advisoryCmd.MarkFlagRequired("entity")
	_ = advisoryCmd.MarkFlagRequired("stage")
	rootCmd.AddCommand(advisoryCmd)
}
