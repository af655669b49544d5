// Package api provides the InsightDash REST client.
//
// Endpoints live under a base URL such as http://localhost:8000/api/v1:
//   - /auth: login and current user
//   - /datasets: dataset CRUD, data points, preview
//   - /analytics: forecasts and summaries
//
// Requests carry a bearer token taken from a TokenSource. A 401 response
// invalidates that token.
package api
