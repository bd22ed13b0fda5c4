// Package migrations embeds the inventory schema into the binary.
//
// Importing this package registers the files with the database package,
// so Migrate works without the SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/hvcrate-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
