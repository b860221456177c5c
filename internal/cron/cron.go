// Package cron runs periodic housekeeping: evicting idle sessions,
// sweeping stale reply clips and forgetting idle rate-limit buckets.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs. Names are unique per scheduler.
	Name() string

	// Schedule returns a 5-field cron expression such as "*/5 * * * *".
	Schedule() string

	// Run performs one tick. It should return early once ctx is done.
	Run(ctx context.Context) error
}
