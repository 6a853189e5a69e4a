// Package email sends transactional emails through Postmark, with a
// development sender that writes messages to disk instead. Services depend
// on the EmailSender interface so tests can substitute their own fakes.
package email
