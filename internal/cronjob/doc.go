// Package cronjob schedules and runs shell commands on cron expressions,
// grounded on original_source/crates/cron/src/scheduler.rs. It is a
// standalone subsystem: unlike a Session, a CronJob is not scoped to a
// conversation, so the Manager here owns its own store and event bus
// rather than borrowing a Session's.
package cronjob
