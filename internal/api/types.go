package api

import "encoding/json"

// Token from POST /auth/login
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User from GET /auth/users/me
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Dataset represents a dataset owned by a user.
type Dataset struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"data_type"`
	IsPublic    bool   `json:"is_public"`
	OwnerID     int64  `json:"owner_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// DatasetCreate is the body of POST /datasets.
type DatasetCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"data_type,omitempty"`
	IsPublic    bool   `json:"is_public"`
}

// DatasetUpdate is the body of PUT /datasets/{id}. Nil fields are left unchanged.
type DatasetUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	DataType    *string `json:"data_type,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// DataPoint is a stored observation of a dataset.
type DataPoint struct {
	ID        int64          `json:"id"`
	DatasetID int64          `json:"dataset_id"`
	Timestamp string         `json:"timestamp"`
	Value     float64        `json:"value"`
	MetaData  map[string]any `json:"meta_data,omitempty"`
}

// DataPointCreate is the body of POST /datasets/{id}/data. An empty
// Timestamp lets the backend use the current time.
type DataPointCreate struct {
	Timestamp string         `json:"timestamp,omitempty"`
	Value     float64        `json:"value"`
	MetaData  map[string]any `json:"meta_data,omitempty"`
}

// Page selects a window of a listing.
type Page struct {
	Skip  int
	Limit int
}

// Preview from GET /datasets/{id}/preview
type Preview struct {
	Data       []map[string]any `json:"data"`
	Columns    []string         `json:"columns,omitempty"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// ForecastRequest is the body of POST /analytics/forecast.
type ForecastRequest struct {
	DatasetID int64  `json:"dataset_id"`
	Periods   int    `json:"periods"`
	ModelType string `json:"model_type"`
}

// ForecastResult from POST /analytics/forecast
type ForecastResult struct {
	ForecastID         int64           `json:"forecast_id"`
	Forecast           json.RawMessage `json:"forecast"`
	ConfidenceInterval json.RawMessage `json:"confidence_interval,omitempty"`
	Metrics            json.RawMessage `json:"metrics,omitempty"`
	ModelType          string          `json:"model_type"`
	Periods            int             `json:"periods"`
}

// Forecast is a stored forecast from the history endpoint.
type Forecast struct {
	ID                 int64           `json:"id"`
	DatasetID          int64           `json:"dataset_id"`
	ModelType          string          `json:"model_type"`
	TargetColumn       string          `json:"target_column"`
	ForecastData       json.RawMessage `json:"forecast_data,omitempty"`
	ConfidenceInterval json.RawMessage `json:"confidence_interval,omitempty"`
	AccuracyMetrics    json.RawMessage `json:"accuracy_metrics,omitempty"`
	CreatedAt          string          `json:"created_at"`
}

// AnalyticsSummary from GET /analytics/summary
type AnalyticsSummary struct {
	DatasetsCount   int    `json:"datasets_count"`
	TotalDataPoints int    `json:"total_data_points"`
	RecentActivity  int    `json:"recent_activity"`
	UserRole        string `json:"user_role"`
	LastUpdated     string `json:"last_updated"`
}
