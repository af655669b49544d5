package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rickgao/insightdash/internal/api"
	"github.com/spf13/cobra"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast <dataset-id>",
	Short: "Request a forecast for a dataset",
	Long: `Request a forecast for a dataset, or list its past forecasts.

The backend needs at least 10 data points. Subscribed live clients are
notified with a forecast_complete message when it finishes.

Example:
  insightdash forecast 3
  insightdash forecast 3 --periods 14 --model prophet
  insightdash forecast 3 --history`,
	Args: cobra.ExactArgs(1),
	RunE: runForecast,
}

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().Int("periods", 30, "number of periods to forecast")
	forecastCmd.Flags().String("model", api.ModelARIMA, "model type: linear_regression, arima or prophet")
	forecastCmd.Flags().Bool("history", false, "list past forecasts instead of creating one")
	forecastCmd.Flags().Int("limit", 10, "number of past forecasts to list with --history")
}

func runForecast(cmd *cobra.Command, args []string) error {
	id, err := parseDatasetID(args[0])
	if err != nil {
		return err
	}
	client, err := restClient(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if history, _ := cmd.Flags().GetBool("history"); history {
		limit, _ := cmd.Flags().GetInt("limit")
		forecasts, err := client.GetForecastHistory(ctx, id, limit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tMODEL\tCREATED")
		for _, f := range forecasts {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", f.ID, f.ModelType, f.CreatedAt)
		}
		return tw.Flush()
	}

	periods, _ := cmd.Flags().GetInt("periods")
	model, _ := cmd.Flags().GetString("model")
	switch model {
	case api.ModelLinearRegression, api.ModelARIMA, api.ModelProphet:
	default:
		return fmt.Errorf("unknown model %q", model)
	}

	result, err := client.CreateForecast(ctx, api.ForecastRequest{
		DatasetID: id,
		Periods:   periods,
		ModelType: model,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "forecast %d: %s, %d periods\n", result.ForecastID, result.ModelType, result.Periods)
	fmt.Fprintf(out, "%s\n", result.Forecast)
	return nil
}
