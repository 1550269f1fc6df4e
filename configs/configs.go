// Package configs embeds the default prompt files copied into the runtime directory.
package configs

import "embed"

//go:embed SYSTEM.md IDENTITY.md USER.md
var FS embed.FS
