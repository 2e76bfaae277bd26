package formflow

import _ "embed"

// Version is the formflow release, read from the VERSION file.
//
//go:embed VERSION
var Version string
