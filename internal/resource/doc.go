// Package resource fingerprints the server jar and optionally keeps it in
// sync with an HTTP source.
package resource
