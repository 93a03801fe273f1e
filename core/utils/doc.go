// Package utils provides common helpers shared across packages: loose type conversion and
// reading/writing typed values in flat string field maps used by the hash cache codecs.
package utils
