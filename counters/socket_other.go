//go:build !unix

package counters

var maxSocketPath = 107
