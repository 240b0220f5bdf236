// Package dedupe tracks recently seen keys in a time and size bounded window
// so that redelivered messages can be recognised and skipped.
package dedupe
