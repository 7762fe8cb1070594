// Package repositories implements relational persistence for users, tags and track-tag associations.
//
// Key Implementations:
//   - [UserRepository] : the identity store, keyed by the provider's external id
//   - [TagRepository] : user-owned tags
//   - [SongTagRepository] : associations between external track ids and tags
//
// Every repository works against sqlite (mattn/go-sqlite3) and postgres (pgx)
// through [shared.DB]. Queries are written with "?" placeholders and rebound
// for postgres.
//
// Ownership is enforced in SQL: every read and delete on tags and
// associations filters on the caller's user id, so a caller can never observe
// or remove another user's rows. Deletes that match nothing return
// [shared.ErrNotFound].
//
// Driver errors are classified once, in classify, into [shared.ErrDuplicate],
// [shared.ErrNotFound] (foreign key violations) and [shared.ErrStoreConnection].
package repositories
