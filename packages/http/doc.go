// Package http provides the request layer of hitfetch.
//
// A logical request made with Get or Post may expand into several physical
// exchanges:
//   - Redirects are followed manually, up to a fixed depth, so the cookie
//     jar is updated on every hop
//   - 301/302 after POST and every 303 downgrade to a body-less GET
//   - GET attaches stored bearer credentials for the URL's host
//   - A 401 triggers a token refresh when the credentials allow it, or a
//     retry without the token otherwise
//
// Transport failures never surface as errors; they are reported on the
// FetchResult through IsNetworkError, IsTimeout and IsAbort.
package http
