package quill

import _ "embed"

// Version is the release of the quill module, read from the VERSION file.
//
//go:embed VERSION
var Version string
