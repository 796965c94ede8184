// Package web embeds the browser scanner page served at /.
package web

import _ "embed"

// Index is the scanner page. It calls the /api routes with a session token
// pasted by the operator.
//
//go:embed index.html
var Index []byte
