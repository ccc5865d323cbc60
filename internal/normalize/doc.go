// Package normalize converts raw event and metric tables into the canonical
// shapes consumed by the analysis packages.
//
// Events: timestamps are parsed leniently (mixed layouts, embedded offsets,
// stray quotes), converted to UTC and stored without their original offset.
// Rows that fail to parse are dropped and counted, never kept with a zero
// timestamp. Tables are concatenated without cross-source deduplication.
//
// Metrics: one point per calendar date, sorted ascending, with a confounder
// column that is either read from the table or synthesized as the 3-point
// rolling standard deviation of the value.
package normalize
