// Package store holds the persistence primitives shared by the database
// adapters: the DBTX abstraction over *sql.DB and *sql.Tx, transaction
// handling and the common store errors.
package store
