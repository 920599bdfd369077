// Package credentials stores authentication records keyed by origin host.
//
// A Store hands out copies of its records, so callers may modify what they
// get back without affecting other requests. Writes for a single origin can
// be serialized with Lock, which the HTTP client uses to make the
// refresh-and-persist sequence atomic per host.
package credentials
