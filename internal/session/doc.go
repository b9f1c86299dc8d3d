// Package session implements the Session aggregate: the owned mutable
// state of one conversation (messages, usage, cost, todos, memory, current
// plan) plus the four pieces of machinery a session exclusively owns —
// its Permission Policy, Confirmation Manager, Command Queue, and event
// broadcaster.
//
// The Agent Loop never owns Session state directly; it borrows a
// snapshot of messages and model config, runs its turn loop, and calls
// back into the Session to append the resulting messages and usage. The
// Session Manager owns the session_id -> Session map and is the only
// thing that creates, destroys, or looks one up.
package session
