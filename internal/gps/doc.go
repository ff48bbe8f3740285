// Package gps turns NMEA 0183 input into positioning fixes.
//
// ParsePair combines one RMC and one GGA sentence into a Fix. PairReader finds
// those pairs in a line stream (a log file, possibly still growing, or a
// serial port opened with OpenSerial).
package gps
