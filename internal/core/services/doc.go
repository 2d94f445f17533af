// Package services implements the application's core business logic.
//
// Services implement the driving port interfaces and depend only on the
// driven port interfaces, never on concrete adapters:
//
//   - Exporter: the embedding sync state machine (claim, batch upsert,
//     commit/release) against the external vector index
//   - Library: record management and consistency operations
//     (duplicate-with-descendants, batch soft delete, portable dumps)
package services
