package web

import "embed"

// StaticFS embeds the published static documents, most importantly the
// default exchange-rate feed at static/rates.json.
//
//go:embed static
var StaticFS embed.FS
