// Package database opens the SQLite file holding the crate inventory and
// keeps its schema current.
//
// Migrations live in the migrations package as
// YYYYMMDD_HHMMSS_description.{up,down}.sql and are registered from its
// init function, so importing that package is enough for Migrate to find
// them:
//
//	import _ "github.com/nerrad567/hvcrate-core/migrations"
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Schema changes are additive: new columns are nullable or carry a default,
// so an older binary can still read a newer inventory.
package database
