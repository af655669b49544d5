// Package poller implements the dataset refresh loop.
//
// The poller:
//   - Fetches the data points of each watched dataset over REST on an interval
//   - Bounds concurrent requests with an errgroup limit
//   - Hands points to a Handler, which converts them for the window and writer
//   - Fills gaps left while the live connection was down
package poller
