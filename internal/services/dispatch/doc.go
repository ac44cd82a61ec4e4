// Package dispatch runs friday's reminder dispatch loop.
//
// # Overview
//
// Pending commitments live in an in-memory min-priority queue keyed by fire
// time (FIFO among equal fire times). A single background loop sleeps until
// the next entry is due, wakes early when an earlier entry is inserted, then
// drains everything due: notify, mark fired, repeat. The queue is transient;
// it is rebuilt from the commitment store on startup.
//
// # Guarantees
//
//   - Due entries are delivered in non-decreasing fire-time order.
//   - A commitment is delivered at most once while the process runs
//     (at-least-once across a crash/restart, since marking fired follows
//     delivery).
//   - Insert never blocks on the loop: it pushes onto the queue under a
//     short mutex and pokes a buffered wake channel.
//
// A failing sink does not stall the loop: the error is logged, the
// commitment is still marked fired, and the loop moves on. Repeating a
// notification forever against a permanently broken sink would be worse
// than dropping it.
package dispatch
