// Package store persists analysis runs and their shot lists in SQLite.
//
// Each run is a row in runs keyed by its UUID; FinishRun writes the run's
// outcome and its full shot list in one transaction so readers never see a
// finished run with a partial shot list. Failed runs keep the shots that
// were finalized before the failure.
//
// The schema is versioned. A database created by a different schema
// version is rejected with ErrSchemaMismatch rather than migrated.
package store
