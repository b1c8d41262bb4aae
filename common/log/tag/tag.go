// Package tag provides typed, allocation-cheap fields for the logger
// in common/log, following the same tag.X(...) calling convention used
// throughout this codebase's lineage (tag.Error(err), tag.NewStringTag(...)).
package tag

import "go.uber.org/zap"

// Field is a single structured logging field.
type Field = zap.Field

// Error tags the error that triggered the log line.
func Error(err error) Field {
	return zap.Error(err)
}

// NewStringTag creates an arbitrary string-valued field.
func NewStringTag(key, value string) Field {
	return zap.String(key, value)
}

// NewInt64Tag creates an arbitrary int64-valued field.
func NewInt64Tag(key string, value int64) Field {
	return zap.Int64(key, value)
}

// NewDurationTag creates an arbitrary duration-valued field.
func NewDurationTag(key string, value interface{ String() string }) Field {
	return zap.String(key, value.String())
}

// Rank tags the rank a log line pertains to.
func Rank(rank uint32) Field {
	return zap.Uint32("rank", rank)
}

// NamespaceID tags a namespace identifier.
func NamespaceID(id string) Field {
	return zap.String("namespace-id", id)
}

// Key tags an IV key, rendered as a best-effort string (keys are
// opaque bytes; this is for log readability only).
func Key(key []byte) Field {
	return zap.ByteString("key", key)
}

// ClassID tags the IV class id a request is scoped to.
func ClassID(id uint32) Field {
	return zap.Uint32("class-id", id)
}

// Operation tags the high-level operation name (fetch/update/sync/...).
func Operation(op string) Field {
	return zap.String("operation", op)
}

// RequestID tags the uuid an originating rank stamped onto a forwarded
// request, for correlating its hops across a multi-rank log.
func RequestID(id string) Field {
	return zap.String("request-id", id)
}
