package storage

// Package storage is friday's system of record for commitments.
//
// It currently supports:
//   - Append of new pending commitments
//   - Idempotent terminal status transitions (fired/cancelled)
//   - Ordered full load for startup recovery and agenda listing
