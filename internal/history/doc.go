// Package history keeps a local audit trail of confirmed pin transitions.
//
// A Recorder subscribes to a gpio.Runtime and writes every transition to a
// Repository on its own goroutine. The SQLite repository backs the REST
// history endpoint and survives restarts; it does not restore pin state.
//
//	repo := history.NewSQLiteRepository(db.DB)
//	rec := history.NewRecorder(repo, history.RecorderOptions{Retention: cfg.Database.Retention})
//	rec.Start(ctx, rt)
//	defer rec.Stop()
package history
