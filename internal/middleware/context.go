package middleware

import "context"

func contextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}

// GetSubject extracts the authenticated token subject from the context.
// Returns empty string if the request was not authenticated.
func GetSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(SubjectKey).(string); ok {
		return sub
	}
	return ""
}
