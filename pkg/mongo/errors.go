package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrEmptyConnectionURL     = errors.New("empty connection url")
	ErrEmptyDatabaseName      = errors.New("empty database name")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
)
