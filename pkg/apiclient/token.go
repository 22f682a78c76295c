package apiclient

import "context"

// TokenSource supplies bearer tokens for API calls. Refresh is invoked after
// the server rejects a token with 401 and must return a token safe to retry
// with.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenSource always returns the same token. Refresh returns it
// unchanged, so a 401 retry with a static token fails the same way and
// surfaces to the caller.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	return s.token, nil
}

func (s *StaticTokenSource) Refresh(_ context.Context) (string, error) {
	return s.token, nil
}
