package ports

import "context"

// Logger is the narrow structured logger every component receives.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs err alongside msg at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
