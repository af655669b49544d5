// Package realtime keeps the most recent live points per dataset.
//
// A Tracker listens on a live client for data_update and forecast_complete
// events, keeps the newest points of each watched dataset in a Window, and
// forwards every accepted point to a buffer for persistence.
package realtime
