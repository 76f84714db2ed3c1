// Package dispatcher runs jobs on a bounded pool of worker goroutines.
//
// The job count decides the execution mode. With a single job the pool is
// serial: jobs run one at a time on the submitting goroutine, in submission
// order. With more jobs a fixed set of workers drains a shared queue. Job
// failures and panics are captured on the job's Future and never stop the
// pool.
package dispatcher
