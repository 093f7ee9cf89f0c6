// Package session owns the client side of one CoAP exchange.
//
// Ownership boundary:
// - retransmission timing (ACK_TIMEOUT, ACK_RANDOM_FACTOR, MAX_RETRANSMIT)
// - millisecond clock and countdown timer
// - datagram transport contract and its UDP implementation
// - request/response correlation strategies
// - the exchange state machine driven by Client.RunOnce
package session
