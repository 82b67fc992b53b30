// Package web embeds the browser console.
package web

import _ "embed"

// IndexHTML is the operator console served at /.
//
//go:embed index.html
var IndexHTML []byte
