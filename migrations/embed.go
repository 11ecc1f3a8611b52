// Package migrations bundles the SQL schema so binaries and tests can apply
// it without a checkout of this directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
