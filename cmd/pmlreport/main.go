// Command pmlreport runs the activity-quality analysis on a wearable
// sensor CSV and prints the resulting report.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yimp/practicalml/internal/dataset"
	"github.com/yimp/practicalml/pkg/log"
	"github.com/yimp/practicalml/report"
)

var logLevel string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pmlreport",
		Short: "Activity-quality analysis for wearable sensor data",
		Long: `pmlreport trains a boosted-tree classifier on wearable sensor
readings and reports cross-validated and holdout accuracy for the
activity-quality label.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.SetupLogger(logLevel)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		cfg     report.Config
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train, cross-validate and score the classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := report.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return result.WriteText(out)
		},
	}

	cmd.Flags().StringVarP(&cfg.InputPath, "input", "i", "", "path to the training CSV (required)")
	cmd.Flags().StringVar(&cfg.LabelColumn, "label", "classe", "name of the label column")
	cmd.Flags().Float64Var(&cfg.TestFraction, "test-fraction", 0.3, "stratified holdout fraction")
	cmd.Flags().IntVar(&cfg.CVFolds, "folds", 5, "number of cross-validation folds")
	cmd.Flags().IntVar(&cfg.Seed, "seed", 42, "random seed for splits and bagging")
	cmd.Flags().IntVar(&cfg.NumIterations, "iterations", 150, "boosting iterations")
	cmd.Flags().Float64Var(&cfg.LearningRate, "learning-rate", 0.1, "boosting learning rate")
	cmd.Flags().IntVar(&cfg.MaxDepth, "max-depth", 5, "maximum tree depth")
	cmd.Flags().IntVar(&cfg.MinChildSamples, "min-child-samples", 10, "minimum samples per leaf")
	cmd.Flags().Float64Var(&cfg.RegLambda, "lambda", 1.0, "L2 regularization strength")
	cmd.Flags().Float64Var(&cfg.MaxMissingRatio, "max-missing", 0.5, "drop columns with more missing cells than this fraction")
	cmd.Flags().Float64Var(&cfg.Subsample, "subsample", 0.8, "row sampling fraction per iteration")
	cmd.Flags().Float64Var(&cfg.ColsampleBytree, "colsample", 0.8, "feature sampling fraction per tree")
	cmd.Flags().StringVar(&cfg.Scaler, "scaler", "standard", "feature scaling: standard, minmax or none")
	cmd.Flags().StringVar(&cfg.PlotDir, "plots", "", "directory for PNG plots (omit to skip)")
	cmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "log per-iteration training progress")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the report to a file instead of stdout")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func newInspectCmd() *cobra.Command {
	var (
		labelColumn     string
		maxMissingRatio float64
	)

	cmd := &cobra.Command{
		Use:   "inspect <csv>",
		Short: "Summarize a CSV without training",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := dataset.Load(args[0], dataset.LoadOptions{
				LabelColumn:     labelColumn,
				MaxMissingRatio: maxMissingRatio,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:      %s\n", args[0])
			fmt.Fprintf(out, "Samples:   %d\n", table.NumRows())
			fmt.Fprintf(out, "Features:  %d (%d columns dropped)\n",
				table.NumFeatures(), len(table.DroppedColumns))
			if len(table.DroppedColumns) > 0 {
				fmt.Fprintf(out, "Dropped:   %s\n", strings.Join(table.DroppedColumns, ", "))
			}
			if table.HasLabels() {
				fmt.Fprintf(out, "Classes:   %d\n", len(table.ClassNames))
				counts := table.ClassCounts()
				for i, name := range table.ClassNames {
					fmt.Fprintf(out, "  %-4s %d\n", name, counts[i])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&labelColumn, "label", "classe", "name of the label column (empty for unlabelled data)")
	cmd.Flags().Float64Var(&maxMissingRatio, "max-missing", 0.5, "drop columns with more missing cells than this fraction")

	return cmd
}
