// Package cmd provides the command-line interface for ginger.
//
// Every pipeline task is available both through "ginger run <task>" and
// as a top-level command of the same name.
//
// # Available Commands
//
//   - serve: build, watch and serve the app with live reload
//   - watch: rebuild on change without serving
//   - build: production build into dist/
//   - test, test:auto: run the karma unit tests once or on change
//   - styles, scripts, templates, inject, fonts, assets: single stages
//   - clean, clean:tmp, clean:dist: remove generated files
//   - init: scaffold a new seed project
//   - generate pod: add a routed view to a project
//   - config: print or validate the effective settings
//   - repo, user: query the GitHub API the way the app's widgets do
//   - version: print build information
//
// # Command Examples
//
//	// Start a new project and serve it
//	ginger init my-app && cd my-app
//	bower install && npm install
//	ginger serve --open
//
//	// Run several tasks in one process
//	ginger run clean build
//
//	// Production settings for one run
//	ginger build --env production
//
// # Configuration
//
// Settings come from .gingerrc (JSON) in the working directory, the file
// named by --config or GINGER_CONFIG_FILE, and GINGER_ prefixed
// environment variables such as GINGER_PORTS_APP=4000.
package cmd
