// Package history persists pipeline runs and their per-stage token usage in
// a SQLite database so costs can be reviewed after the terminal output is
// gone.
//
// The schema lives in embedded migrations applied in file-name order on Open
// and tracked in a schema_migrations table. Writes retry briefly when the
// database is locked by another process.
package history
