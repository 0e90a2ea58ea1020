// Package idgen mints the IDs of rendered log entries. They only need to be
// unique within a process and safe to embed in URLs and NATS payloads; graph
// nodes use UUIDs instead.
package idgen

import nanoid "github.com/matoous/go-nanoid/v2"

const (
	entryPrefix = "le-"
	alphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Length is the number of random characters after the prefix.
	Length = 10
)

// Entry returns a fresh log entry ID such as "le-3fJq0aZ81x". It panics only
// if the system random source fails.
func Entry() string {
	return entryPrefix + nanoid.MustGenerate(alphabet, Length)
}
