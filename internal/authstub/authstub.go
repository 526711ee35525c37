// Package authstub defines the seam spoq's HTTP layer calls through to
// obtain a bearer token, without implementing the device-authorization
// login flow itself. That flow is out of scope; this package exists so
// internal/backend depends on a typed interface instead of an implicit
// assumption about how a token gets produced.
package authstub

import "context"

// TokenSource supplies the bearer token internal/backend.Client
// authenticates with; internal/update.Downloader sends no token.
// StaticToken, which backend.NewClient builds from the configured API
// key, is the only implementation this repo provides; a real
// device-authorization flow would implement the same interface
// without the caller changing.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same value,
// used when the API key comes from config or environment rather than
// an interactive login.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}
