// Package migrations embeds the default clinic schema. Deployments pointing
// at an existing database with different column names skip these entirely;
// the application discovers whatever columns are actually there.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
