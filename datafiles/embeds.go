// Package datafiles holds data shipped inside the binary.
package datafiles

import _ "embed"

// KeyLayoutsYAML is the default key layout table, in the format read by
// secrets.LoadKeyLayouts.
//
//go:embed keylayouts.yaml
var KeyLayoutsYAML []byte
