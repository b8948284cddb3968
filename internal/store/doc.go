// Package store provides the spreadsheet-style price table behind the
// flight tracker.
//
// The table is partitioned into one origin group per origin airport: a
// sheet named FROM_<IATA> whose rows are (destination, price) pairs in
// insertion order. Nothing in the backing grid is keyed; an entry is
// addressed by its 1-based row position, recomputed from a fresh group
// read before every update.
//
// # Layering
//
//   - Backend: the raw grid transport (sheet exists / create / read rows /
//     append row / update cell / list sheets). Implementations: Google
//     Sheets REST, SQLite, Postgres, in-memory.
//   - PriceStore: the route-table operations the rest of the system uses
//     (GroupExists, CreateGroup, ReadGroup, AppendEntry, UpdateEntry,
//     ListOrigins, LookupPrice), mapping backend failures to BackendError.
//
// # Contract notes
//
//   - ReadGroup silently skips rows that are not exactly a 2-column
//     destination/price pair. Malformed-row tolerance is deliberate: a
//     shared spreadsheet accumulates stray notes and headers.
//   - Destination uniqueness within a group is a tie-break policy, not an
//     enforced constraint: readers take the first match in stored order.
//   - Every mutating call is one remote round trip. There is no cache, no
//     batching, no transaction spanning calls.
package store
