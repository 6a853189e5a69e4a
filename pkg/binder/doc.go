// Package binder decodes HTTP request payloads into typed structs with
// content-type and size enforcement.
package binder
