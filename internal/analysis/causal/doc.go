// Package causal estimates the effect of an incident on a business metric.
//
// The estimator regresses the metric on a binary treatment indicator and a
// single confounder (backdoor adjustment):
//
//	value ~ 1 + is_treated + confounder
//
// and reports the coefficient of is_treated as the average treatment effect.
// Refute re-runs the same fit under permuted treatment assignments to build
// a placebo distribution. Neither step decides whether an incident is
// guilty; callers compare the estimate against the placebo magnitude.
package causal
