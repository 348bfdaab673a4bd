// Package common contains shared constants and sentinel errors used across
// the jwtauth server, its transports and the CLI client.
package common

// AccessTokenHeaderName is the gRPC metadata key (and HTTP header) used to
// carry the access token on inbound requests.
const AccessTokenHeaderName = "authorization"

// BearerPrefix precedes the access token in AccessTokenHeaderName values.
const BearerPrefix = "Bearer "

// RefreshTokenBytes is the amount of raw entropy in a refresh token.
const RefreshTokenBytes = 32
