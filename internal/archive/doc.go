// Package archive stores STAMP packets as files: an annotated hex log with
// one packet per line, raw single-packet files, and a JSON run summary.
//
// Every format keeps packets as separate, independently verifiable records;
// none of them frames several packets into one binary stream.
package archive
