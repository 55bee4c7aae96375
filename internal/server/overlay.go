package server

//go:generate templ generate -f overlay.templ

import (
	"github.com/a-h/templ"

	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/livereload"
)

// overlay renders the current diagnostics as a standalone page that
// reloads itself through the given channel when port is set.
func overlay(diags []gerrors.Diagnostic, port int, channel string) templ.Component {
	var reload string
	if port > 0 {
		reload = string(livereload.Snippet(port, channel))
	}
	return overlayPage(diags, reload)
}
