// Package internal contains the implementation packages of the ginger
// CLI.
//
// # Package Organization
//
//   - graph, scheduler: task graph validation and dependency-ordered,
//     once-per-run task execution
//   - config: .gingerrc loading with viper
//   - scanner: project-relative file discovery
//   - vendor, depsort, inject: bower resolution, Angular module ordering
//     and marker-based injection into index.html and index.scss
//   - styles, lint, templates, testrunner: the sass, script check,
//     template cache and karma stages
//   - build: bundling, minification, revisioning and static copies
//   - watcher, livereload, server: the development loop
//   - appinfo, csp: generated page metadata
//   - github: the GitHub API client behind the repo and user views
//   - scaffolding: seed project and pod templates
//   - services: the pipeline wiring every stage into named tasks
//   - errors, logging, metrics, tool, version: shared infrastructure
package internal
