// Package protocol owns the CoAP wire contract and parsing primitives.
//
// Ownership boundary:
// - header/token/option/payload codec (RFC 7252 section 3)
// - option directory lookups over decoded packets
// - request/response builders
// - response status classification
//
// Decoded packets borrow their token, option values and payload from the
// input buffer. They stay valid only while that buffer is left untouched;
// call Packet.Detach to obtain an owned copy.
package protocol
