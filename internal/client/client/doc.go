// Package client is a thin gRPC client for the jwtauth AuthService that
// maps transport status codes onto a small set of client errors.
package client
