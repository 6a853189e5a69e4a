// Package file provides upload storage backends behind a common Storage
// interface, with helpers for validating uploaded files by size and by
// content-detected MIME type. S3Storage targets Amazon S3 and compatible
// services; LocalStorage keeps files on disk for development.
package file
