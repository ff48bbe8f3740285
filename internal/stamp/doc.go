// Package stamp implements the spatio-temporal packet: a fixed sequence of
// fields encoded in canonical ASN.1 DER and protected by a CRC-16/CCITT-FALSE
// checksum.
//
// Encoding is deterministic, so equal inputs always produce equal bytes, and
// decoding rejects anything that is not the canonical form of some packet.
// The package does no I/O and keeps no state.
package stamp
