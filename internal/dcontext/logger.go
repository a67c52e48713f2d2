// Package dcontext carries a structured logger on a context.Context, the
// way the teacher's context/logger.go does, so every component (C2-C6) can
// log with request-scoped fields (repository, digest, upload id) without
// threading a logger argument through every call.
package dcontext

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger attached to ctx, or the standard logger if
// none is present. Any keys given are resolved against ctx and attached as
// fields, mirroring the teacher's GetLogger(ctx, keys...) convention.
func GetLogger(ctx context.Context, keys ...interface{}) *logrus.Entry {
	logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry)
	if !ok {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	if len(keys) == 0 {
		return logger
	}

	fields := logrus.Fields{}
	for _, key := range keys {
		if v := ctx.Value(key); v != nil {
			fields[fmt.Sprint(key)] = v
		}
	}
	return logger.WithFields(fields)
}

// GetLoggerWithFields returns a logger with the given fields attached,
// plus any additionally resolved context keys, without mutating ctx.
func GetLoggerWithFields(ctx context.Context, fields map[interface{}]interface{}, keys ...interface{}) *logrus.Entry {
	lf := logrus.Fields{}
	for k, v := range fields {
		lf[fmt.Sprint(k)] = v
	}
	return GetLogger(ctx, keys...).WithFields(lf)
}

// contextKey is used for repository/upload-id/digest values attached to a
// request's context so GetLogger(ctx, ContextKeyRepository, ...) can pull
// them into log fields.
type contextKey string

const (
	// ContextKeyRepository is the context key under which the current
	// repository name is stored.
	ContextKeyRepository = contextKey("repository")
	// ContextKeyUploadID is the context key under which the current
	// upload session UUID is stored.
	ContextKeyUploadID = contextKey("upload.id")
)
