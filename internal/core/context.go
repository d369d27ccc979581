package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "audit_ip"
	ctxKeyUserAgent contextKey = "audit_ua"
	ctxKeyActor     contextKey = "audit_actor"
	ctxKeyRequestID contextKey = "audit_request_id"
)

// RequestMeta is the caller information attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Actor     string // API key label, "cli", or empty
	RequestID string
}

// ContextWithRequestMeta stores the non-empty fields of meta in ctx.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	if meta.IPAddress != "" {
		ctx = context.WithValue(ctx, ctxKeyIPAddress, meta.IPAddress)
	}
	if meta.UserAgent != "" {
		ctx = context.WithValue(ctx, ctxKeyUserAgent, meta.UserAgent)
	}
	if meta.Actor != "" {
		ctx = context.WithValue(ctx, ctxKeyActor, meta.Actor)
	}
	if meta.RequestID != "" {
		ctx = context.WithValue(ctx, ctxKeyRequestID, meta.RequestID)
	}
	return ctx
}

// RequestMetaFromContext reads the caller information stored in ctx.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	return RequestMeta{
		IPAddress: stringValue(ctx, ctxKeyIPAddress),
		UserAgent: stringValue(ctx, ctxKeyUserAgent),
		Actor:     stringValue(ctx, ctxKeyActor),
		RequestID: stringValue(ctx, ctxKeyRequestID),
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
