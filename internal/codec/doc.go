// Package codec encodes and decodes values exchanged between the
// controller and its clients.
//
// The exchange protocol moves two kinds of bodies: raw bytes (a client
// posting an opaque blob) and structured values (configuration maps,
// result lists). A structured body is JSON-encoded and tagged with the
// X-Netmeter-Encoding header so the receiver knows to decode it; an
// untagged body is handed over verbatim. JSON was chosen over a binary
// codec because payloads are small, the tagged-or-raw distinction must
// survive an HTTP round trip, and it leaves the wire format readable
// for clients written in other languages.
package codec
