package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Forecast model types accepted by the backend.
const (
	ModelLinearRegression = "linear_regression"
	ModelARIMA            = "arima"
	ModelProphet          = "prophet"
)

// CreateForecast runs a forecast for a dataset. The backend needs at
// least 10 data points.
func (c *Client) CreateForecast(ctx context.Context, in ForecastRequest) (*ForecastResult, error) {
	if in.Periods <= 0 {
		in.Periods = 30
	}
	if in.ModelType == "" {
		in.ModelType = ModelARIMA
	}

	var resp ForecastResult
	if err := c.send(ctx, http.MethodPost, "/analytics/forecast", in, &resp); err != nil {
		return nil, fmt.Errorf("create forecast for dataset %d: %w", in.DatasetID, err)
	}
	return &resp, nil
}

// GetForecastHistory returns the most recent forecasts of a dataset, newest first.
func (c *Client) GetForecastHistory(ctx context.Context, datasetID int64, limit int) ([]Forecast, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/analytics/forecast/" + strconv.FormatInt(datasetID, 10) + "/history"

	var resp []Forecast
	if err := c.get(ctx, path, q, &resp); err != nil {
		return nil, fmt.Errorf("get forecast history for dataset %d: %w", datasetID, err)
	}
	return resp, nil
}

// GetAnalyticsSummary returns the caller's overall activity summary.
func (c *Client) GetAnalyticsSummary(ctx context.Context) (*AnalyticsSummary, error) {
	var resp AnalyticsSummary
	if err := c.get(ctx, "/analytics/summary", nil, &resp); err != nil {
		return nil, fmt.Errorf("get analytics summary: %w", err)
	}
	return &resp, nil
}
