// Package clientip extracts the originating client's IP address from an
// *http.Request when the application runs behind one or more reverse
// proxies. GetIP never returns an error; if no valid address is found an
// empty string is returned so callers can decide how to proceed.
package clientip
