// Package report derives the aggregate tables shown to operators from the
// master table: per-locality summaries, daily and monthly breakdowns, the
// peak reading and colored map points.
//
// All working-time figures are computed with [domain.TotalDuration] so the
// tables agree with each other.
package report
