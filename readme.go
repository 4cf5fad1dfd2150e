// Package portfolio exposes repository-level assets to the commands.
package portfolio

import _ "embed"

//go:embed README.md
var Readme string
