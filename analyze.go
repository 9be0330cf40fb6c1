package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lookout-hq/lookout/pkg/database"
	"github.com/lookout-hq/lookout/pkg/llm"
	"github.com/lookout-hq/lookout/pkg/repositories"
	"github.com/lookout-hq/lookout/pkg/services"
)

var analyzeMentionsCmd = &cobra.Command{
	Use:   "analyze-mentions",
	Short: "Run one mention analysis batch over completed results and print the summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := connectDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		extractor, err := llm.NewMentionExtractor(cfg, logger)
		if err != nil {
			return err
		}

		analyzer := services.NewMentionAnalysisService(
			repositories.NewModelResultRepository(),
			repositories.NewMentionRepository(),
			database.NewScopeProvider(db),
			extractor,
			cfg.Mentions.Concurrency,
			nil,
			logger,
		)

		summary, err := analyzer.AnalyzeMentions(ctx)
		if err != nil {
			return fmt.Errorf("mention analysis failed: %w", err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}
