// Package decoder verifies stored STAMP packets in bulk: hex logs, raw
// packet files and IPv6-encapsulated captures. A run keeps per-category
// failure counts and exports the verified records as a JSON document.
package decoder
