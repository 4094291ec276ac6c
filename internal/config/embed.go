package config

import "embed"

// schemaFS embeds the CUE schema user configurations are unified with.
//
//go:embed schema.cue
var schemaFS embed.FS

// schemaFile is the embedded schema path within schemaFS.
const schemaFile = "schema.cue"
