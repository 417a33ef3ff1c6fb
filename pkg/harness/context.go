package harness

import "context"

type contextKey string

const providerKeyKey contextKey = "provider-key"

// WithProviderKey attaches a per-request provider API key to the context.
// Backend clients consult it before their configured credentials, so one
// request can be billed to a different key without rebuilding the client.
func WithProviderKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, providerKeyKey, key)
}

// ProviderKey returns the override key from the context, if one is set.
func ProviderKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(providerKeyKey).(string)
	return key, ok && key != ""
}
