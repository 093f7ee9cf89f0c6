// Package server answers CoAP requests over UDP.
//
// A Router holds the endpoint table and the link-format discovery listing.
// Server reads one datagram at a time, dispatches it through the Router and
// writes the piggy-backed reply. Handlers build responses with
// protocol.MakeResponse into the scratch buffer they are handed; anything
// the response borrows must stay valid until the handler returns.
package server
