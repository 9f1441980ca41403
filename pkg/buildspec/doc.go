// Package buildspec loads declarative build requests from polybuild.yaml
// files.
//
// A build request names the capability to build with, the project
// directories, the expected runtime, and optional binary pins. Decoding is
// strict: unknown fields are rejected. Loaded specs convert into the
// workflow package's Capability and Config types.
package buildspec
