// Package logger provides a context-scoped logrus entry, mirroring the
// logger.GetLogger(ctx) idiom used throughout the router and RAG
// gateways.
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var base = logrus.StandardLogger()

func init() {
	base.SetFormatter(&logrus.JSONFormatter{})
}

// WithRequestID returns a context carrying a logger entry tagged with
// requestID, so downstream GetLogger(ctx) calls include it automatically.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	entry := base.WithField("request_id", requestID)
	return context.WithValue(ctx, ctxKey{}, entry)
}

// GetLogger returns the logger entry stashed on ctx, or the package base
// logger if none was attached.
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(base)
}

// SetLevel adjusts the base logger's level; used at process startup.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}
