package assets

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte

// CatalogYAML contains the action catalog: the only action names the bridge may invoke.
//
//go:embed defaults/catalog.yaml
var CatalogYAML []byte
