// Package inventory persists discovery runs in SQLite.
//
// Each run records where and how the crate was discovered, the boards found
// and the full token catalog as the registry issued it. Operators use it to
// compare the catalog across restarts and to resolve record names offline.
//
// Usage:
//
//	repo := inventory.NewSQLiteRepository(db.DB)
//	snap := inventory.Snapshot(cfg.Crate.ID, reg)
//	if err := repo.SaveRun(ctx, snap); err != nil {
//	    return err
//	}
package inventory
