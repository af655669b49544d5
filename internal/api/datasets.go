package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ErrEmptyToken is returned when login succeeds without an access token.
var ErrEmptyToken = errors.New("empty access token")

func (p Page) query() url.Values {
	q := url.Values{}
	if p.Skip > 0 {
		q.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

func datasetPath(id int64, suffix string) string {
	return "/datasets/" + strconv.FormatInt(id, 10) + suffix
}

// ListDatasets fetches a page of datasets visible to the caller.
func (c *Client) ListDatasets(ctx context.Context, page Page) ([]Dataset, error) {
	var resp []Dataset
	if err := c.get(ctx, "/datasets/", page.query(), &resp); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return resp, nil
}

// GetDataset fetches a single dataset.
func (c *Client) GetDataset(ctx context.Context, id int64) (*Dataset, error) {
	var resp Dataset
	if err := c.get(ctx, datasetPath(id, ""), nil, &resp); err != nil {
		return nil, fmt.Errorf("get dataset %d: %w", id, err)
	}
	return &resp, nil
}

// CreateDataset creates a dataset owned by the caller.
func (c *Client) CreateDataset(ctx context.Context, in DatasetCreate) (*Dataset, error) {
	var resp Dataset
	if err := c.send(ctx, http.MethodPost, "/datasets/", in, &resp); err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}
	return &resp, nil
}

// UpdateDataset changes the non-nil fields of a dataset.
func (c *Client) UpdateDataset(ctx context.Context, id int64, in DatasetUpdate) (*Dataset, error) {
	var resp Dataset
	if err := c.send(ctx, http.MethodPut, datasetPath(id, ""), in, &resp); err != nil {
		return nil, fmt.Errorf("update dataset %d: %w", id, err)
	}
	return &resp, nil
}

// DeleteDataset removes a dataset and its data points.
func (c *Client) DeleteDataset(ctx context.Context, id int64) error {
	if err := c.send(ctx, http.MethodDelete, datasetPath(id, ""), nil, nil); err != nil {
		return fmt.Errorf("delete dataset %d: %w", id, err)
	}
	return nil
}

// GetDatasetData fetches a page of a dataset's data points.
func (c *Client) GetDatasetData(ctx context.Context, id int64, page Page) ([]DataPoint, error) {
	var resp []DataPoint
	if err := c.get(ctx, datasetPath(id, "/data"), page.query(), &resp); err != nil {
		return nil, fmt.Errorf("get dataset %d data: %w", id, err)
	}
	return resp, nil
}

// AddDataPoint appends a data point to a dataset.
func (c *Client) AddDataPoint(ctx context.Context, id int64, in DataPointCreate) (*DataPoint, error) {
	var resp DataPoint
	if err := c.send(ctx, http.MethodPost, datasetPath(id, "/data"), in, &resp); err != nil {
		return nil, fmt.Errorf("add data point to dataset %d: %w", id, err)
	}
	return &resp, nil
}

// GetPreview fetches one page of the tabular preview of a dataset.
func (c *Client) GetPreview(ctx context.Context, id int64, page, pageSize int) (*Preview, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}

	var resp Preview
	if err := c.get(ctx, datasetPath(id, "/preview"), q, &resp); err != nil {
		return nil, fmt.Errorf("get dataset %d preview: %w", id, err)
	}
	return &resp, nil
}
