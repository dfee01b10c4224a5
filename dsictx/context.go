// Package dsictx carries per-call driver switches on a context.
package dsictx

import "context"

type verboseKey struct{}

// IsVerbose reports whether protocol frames should be traced.
func IsVerbose(ctx context.Context) bool {
	v, _ := ctx.Value(verboseKey{}).(bool)
	return v
}

func SetVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, verboseKey{}, verbose)
}
