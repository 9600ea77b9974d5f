// Package globeid normalizes, generates and allocates globe identifiers.
//
// A globe id is the key prefix of every event of a globe, so the accepted
// alphabet excludes the key separator: ids are lower-case letters, digits
// and underscores, at most MaxLen characters long.
package globeid
