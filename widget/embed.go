// Package widget provides the embedded browser assets of the build status
// widget.
//
// The static site includes build_status.js and an element with
// id="build-status"; the script subscribes to the service's event stream and
// writes each update into that element. index.html is a preview page served
// at the root path.
package widget

import "embed"

// Assets is an embedded filesystem containing the widget.
//
// The filesystem structure is:
//
//	assets/
//	  index.html       - Preview page with a status element
//	  build_status.js  - Script that keeps #build-status up to date
//
//go:embed assets/*
var Assets embed.FS
