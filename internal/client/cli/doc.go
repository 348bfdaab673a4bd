// Package cli implements the jwtauth command line client: one command per
// invocation, prompts on stdin, and JSON results on stdout.
package cli
