// Package migrations embeds the backend schema used by self-hosted deployments.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
