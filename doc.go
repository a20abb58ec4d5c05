// Package opsql is an embedded SQLite client that runs everything on a
// single connection.
//
// Statements, batches and transactions requested from any number of
// goroutines are admitted one at a time, in the order they were requested.
// A transaction holds the connection for the whole of its callback, so its
// statements never interleave with other work; if the callback fails, the
// transaction rolls back as a unit.
//
//	db, err := opsql.Open("app.db", opsql.WithLocation(dir))
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	err = db.Transaction(ctx, func(ctx context.Context, tx *opsql.Tx) error {
//		_, err := tx.Execute(ctx, "INSERT INTO User (id, name) VALUES (?, ?)", 7, "Ann")
//		return err
//	})
//
// Every operation has an Async variant that takes its place in line before
// returning and reports through a Future.
//
// Inside a transaction callback, pass the callback's ctx to DB methods:
// they then run inside the transaction's slot instead of queueing behind
// it.
package opsql
