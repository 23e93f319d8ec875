package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ContrejfC/ai-bookkeeper/internal/calibrate"
	"github.com/ContrejfC/ai-bookkeeper/internal/cli"
	"github.com/ContrejfC/ai-bookkeeper/internal/common"
)

func calibrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibration",
		Short: "Inspect and evaluate the calibration table",
	}

	cmd.AddCommand(calibrationShowCmd())
	cmd.AddCommand(calibrationCheckCmd())

	return cmd
}

func calibrationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configured calibration table",
		RunE:  runCalibrationShow,
	}
}

func calibrationCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <samples.json>",
		Short: "Evaluate calibration quality on a held-out labeled set",
		Long: `Compute the Brier score and per-bin calibration gaps over a JSON array
of {probability, outcome} samples. The check fails when the Brier score
exceeds 0.15 or any meaningfully populated bin is off by more than 0.05.`,
		Args: cobra.ExactArgs(1),
		RunE: runCalibrationCheck,
	}
	cmd.Flags().Int("bins", 10, "Number of fixed-width probability bins")
	return cmd
}

func runCalibrationShow(_ *cobra.Command, _ []string) error {
	path := viper.GetString("calibration.table")
	if path == "" {
		fmt.Println(cli.FormatWarning("No calibration table configured; decisions fail closed to probability 0"))
		return common.ErrNoCalibration
	}

	table, err := calibrate.LoadTable(path)
	if err != nil {
		return err
	}

	content := fmt.Sprintf("Version: %s\nMethod: %s\nRule ceiling: %.2f\nMemory bins: %d\nGenerative bins: %d",
		table.Version, table.Method, table.RuleCeiling, len(table.Memory), len(table.Generative))
	fmt.Println(cli.RenderBox("Calibration table", content))
	return nil
}

type calibrationSample struct {
	Probability float64 `json:"probability"`
	Outcome     bool    `json:"outcome"`
}

func runCalibrationCheck(cmd *cobra.Command, args []string) error {
	binCount, _ := cmd.Flags().GetInt("bins")

	var raw []calibrationSample
	if err := decodeJSONFile(args[0], &raw); err != nil {
		return err
	}

	samples := make([]calibrate.Sample, len(raw))
	for i, s := range raw {
		samples[i] = calibrate.Sample{Probability: s.Probability, Outcome: s.Outcome}
	}

	report := calibrate.Evaluate(samples, binCount)

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Calibration check over %d sample(s)", len(samples))))
	header := fmt.Sprintf("%-14s  %6s  %10s  %9s  %6s", "BIN", "COUNT", "PREDICTED", "OBSERVED", "GAP")
	fmt.Println(cli.TableHeaderStyle.Render(header))
	for _, bin := range report.Bins {
		if bin.Count == 0 {
			continue
		}
		gap := bin.MeanPredicted - bin.ObservedRate
		if gap < 0 {
			gap = -gap
		}
		fmt.Printf("[%.2f, %.2f)    %6d  %10.3f  %9.3f  %6.3f\n",
			bin.Lower, bin.Upper, bin.Count, bin.MeanPredicted, bin.ObservedRate, gap)
	}

	summary := fmt.Sprintf("Brier score: %.4f (max %.2f)\nECE: %.4f\nMax bin gap: %.4f (max %.2f)",
		report.BrierScore, calibrate.MaxBrierScore, report.ECE, report.MaxGap, calibrate.MaxBinGap)

	if !report.Acceptable() {
		fmt.Println(cli.RenderBox("Result", summary+"\n"+cli.FormatError("Calibration does not meet the quality bar")))
		return fmt.Errorf("calibration check failed")
	}

	fmt.Println(cli.RenderBox("Result", summary+"\n"+cli.FormatSuccess("Calibration meets the quality bar")))
	return nil
}
