// Package workflows provides the built-in workflow definitions for Polybuild.
//
// Each definition binds a capability to a requirement provider (which
// binaries must exist, and how candidates are validated against the
// configured runtime) and a plan func producing the ordered action list for
// one build. Definitions are plain values; nothing registers itself on
// import. Call RegisterBuiltins on a registry during startup.
//
// Built-in workflows:
//
//  1. python-pip - requirements.txt/pyproject.toml projects built with pip
//  2. nodejs-npm - package.json projects built with npm
//  3. go-mod - go.mod projects compiled with the go toolchain
package workflows
