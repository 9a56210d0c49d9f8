package audit

import "context"

// TokenSource supplies the bearer credential attached to pipeline
// requests. Issuing and refreshing credentials is the caller's concern.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same credential.
type StaticToken string

// Token returns the credential, or ErrUnauthenticated when it is empty.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrUnauthenticated
	}
	return string(t), nil
}
