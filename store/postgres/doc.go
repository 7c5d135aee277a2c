// Package postgres implements the goAccount store interfaces on PostgreSQL
// through pgx, with SQL built by squirrel.
//
// Every repository accepts a DB, which *pgxpool.Pool satisfies, so tests can
// drive the repositories with pgxmock. Schema applies the embedded DDL.
//
// Error mapping:
//
//   - pgx.ErrNoRows and zero affected rows become model.ErrNotFound.
//   - unique_violation (SQLSTATE 23505) becomes model.ErrDuplicate.
package postgres
