// Package ir provides the value model shared by every statetree package.
//
// State leaves are sealed IR values (string, int64, bool, null, arrays and
// objects). This package imports nothing internal so that reactive, store,
// journal and compiler can all depend on it without cycles.
//
// Key constraints:
//   - No float values anywhere: a snapshot must hash identically on replay
//   - Canonical JSON follows RFC 8785 with NFC-normalized strings
//   - Hashes are SHA-256 with a domain prefix per record kind
//   - All JSON tags use snake_case
package ir
