// Package pg wires PostgreSQL into the billing service using pgx/v5 and goose.
//
// It covers connection pooling with startup retries, schema migrations from
// disk or an embedded filesystem, transactions, health probes and the error
// classification the stores rely on.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, migrations.FS, ".", cfg, log); err != nil {
//		return err
//	}
//
//	err = pg.WithTx(ctx, pool, func(tx pgx.Tx) error {
//		_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key)
//		return err
//	})
//
// # Errors
//
// Every failure is joined with a package sentinel (ErrFailedToOpenDBConnection,
// ErrFailedToApplyMigrations, ErrFailedToBeginTx and so on), so callers can
// match with errors.Is while keeping the driver error for logs.
// IsConstraintViolation inspects the *pgconn.PgError code and constraint name.
package pg
