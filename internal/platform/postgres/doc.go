// Package postgres implements the persistence contracts on PostgreSQL
// through the pgx database/sql driver: the artifact store used by the
// generation engine, the durable task store behind the job queue and the
// admin settings source of routing overrides. Schema migrations are
// embedded and applied with goose.
package postgres
