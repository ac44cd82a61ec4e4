// Package agenda holds friday's commitment model and the scheduling API the
// command layer talks to.
//
// A commitment is a one-shot reminder or meeting notification. The store is
// the system of record; the dispatch queue is transient and rebuilt from the
// store on startup. Every mutation goes store-first, then queue, so a crash
// between the two can at worst re-deliver (at-least-once), never lose.
package agenda
