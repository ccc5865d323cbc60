// Package anomaly flags days on which a business metric fell significantly
// below its trailing baseline.
//
// The baseline of a point is the mean and sample standard deviation of the
// last W points including the point itself. At least max(1, W/2) points are
// required before the statistics are defined. The z-score of a point is
// (value - mean) / std; only drops are anomalous, spikes are ignored.
package anomaly
