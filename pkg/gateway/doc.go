// Package gateway owns the WebSocket surface of Hermes: the connection
// abstraction, the registry that tracks every live connection, the
// request coordinator that multiplexes chat requests over connections,
// and the HTTP server that ties them together.
//
// The registry is the sole owner of connection state. The coordinator
// and the streaming pipeline refer to connections by id only and
// deliver frames through the registry, never through a connection
// handle they hold themselves.
package gateway
