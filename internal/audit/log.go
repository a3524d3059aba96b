// Package audit emits structured records of credential lifecycle events:
// signup, login, logout, refresh, password reset, and verification. Entries
// carry the request id and, when present, the acting user and role so a
// grep over the log reconstructs who did what to which account.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"vendoor.org/internal/auth"
	"vendoor.org/internal/obs"
)

type requestIDKey struct{}

// WithRequestID attaches the request identifier audit entries are stamped with.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes one audit entry. The event name is a dot-separated path
// such as "auth.login" or "auth.password_reset"; fields hold event-specific
// detail and never secrets, tokens, or password material.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name is required")
	}

	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok && p.User != nil {
		entry["user_id"] = p.User.ID
		entry["role"] = string(p.User.Role)
	}

	detail := make(map[string]any, len(fields))
	for k, v := range fields {
		detail[k] = v
	}
	entry["fields"] = detail

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
