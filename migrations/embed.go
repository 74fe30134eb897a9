// Package migrations embeds the SQL schema migrations into the binary.
//
// Importing this package (for side effects) registers the embedded
// filesystem with the database package:
//
//	import _ "github.com/hearthlabs/hearth-cloud/migrations"
package migrations

import (
	"embed"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
