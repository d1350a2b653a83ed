package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/datacheck/internal/domain/anomaly"
	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
	"github.com/okian/datacheck/internal/domain/quality"
	"github.com/okian/datacheck/internal/domain/recommend"

	"github.com/spf13/cobra"
)

// scanResult is the offline report printed by the scan command.
type scanResult struct {
	Dataset         string                   `json:"dataset"`
	Rows            int                      `json:"rows"`
	Columns         int                      `json:"columns"`
	Quality         *model.QualityReport     `json:"quality"`
	Anomalies       *model.AnomalyReport     `json:"anomalies"`
	Recommendations *model.RecommendationSet `json:"recommendations"`
}

// newScanCmd builds the offline one-shot assessment command. It runs the
// same pipeline as the server, minus the LLM, against a local file.
func newScanCmd() *cobra.Command {
	var (
		contamination float64
		quorum        int
		minRows       int
		seed          int64
		iqrMultiplier float64
		compact       bool
	)

	cmd := &cobra.Command{
		Use:   "scan FILE",
		Short: "Assess a local CSV, TSV or XLSX file and print the reports as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			ds, err := dataset.Load(filepath.Base(path), f)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}

			agg, err := quality.NewAggregator(
				quality.WithAnalyzer(quality.NewAccuracy(quality.WithIQRMultiplier(iqrMultiplier))),
			)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			qualityReport, err := agg.Assess(ctx, ds)
			if err != nil {
				return fmt.Errorf("assess quality: %w", err)
			}

			ensemble := anomaly.NewEnsemble(
				anomaly.WithContamination(contamination),
				anomaly.WithQuorum(quorum),
				anomaly.WithMinRows(minRows),
				anomaly.WithSeed(seed),
			)
			anomalyReport, err := ensemble.Detect(ctx, ds)
			if err != nil {
				return fmt.Errorf("detect anomalies: %w", err)
			}

			recommendations := recommend.New().Build(ctx, ds.Name(), qualityReport, anomalyReport)

			result := scanResult{
				Dataset:         ds.Name(),
				Rows:            ds.Rows(),
				Columns:         ds.Cols(),
				Quality:         qualityReport,
				Anomalies:       anomalyReport,
				Recommendations: recommendations,
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(result)
		},
	}

	cmd.Flags().Float64Var(&contamination, "contamination", 0.1, "assumed anomalous fraction per detector")
	cmd.Flags().IntVar(&quorum, "quorum", 2, "detectors that must agree to flag a row")
	cmd.Flags().IntVar(&minRows, "min-rows", 10, "minimum rows required for anomaly detection")
	cmd.Flags().Int64Var(&seed, "seed", 42, "detector random seed")
	cmd.Flags().Float64Var(&iqrMultiplier, "iqr-multiplier", 3.0, "IQR fence multiplier for the accuracy analyzer")
	cmd.Flags().BoolVar(&compact, "compact", false, "print compact JSON")

	return cmd
}
