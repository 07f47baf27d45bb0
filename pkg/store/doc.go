/*
Package store holds the sqlx repositories over the control-plane and
tenant databases.

Each repository wraps one table family and takes the pool it should run
against, so the same types serve the main database and any platform
database. Multi-row writes that must stay consistent (alert status plus
history, login bookkeeping) run inside transactions. MySQL duplicate-key
errors are mapped to conflict errors at this layer.

List operations take a Page; page 0 and page 1 both mean the first page.
*/
package store
