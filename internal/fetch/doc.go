// Package fetch downloads catalog images over HTTP and verifies them
// against their published SHA-256 digests before they are offered for
// writing.
package fetch
