// Package feed serves the InsightDash push endpoint.
//
// A Server upgrades HTTP requests to WebSocket connections, greets each
// subscriber with a connection frame, answers subscribe and ping frames,
// and fans data_update and forecast_complete frames out to every
// subscriber. Subscribers that cannot keep up are dropped.
//
// It backs local development and the live client's integration tests.
package feed
