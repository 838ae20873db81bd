package agentsvc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go/v2/option"
)

// tokens are refreshed this long before they expire
const tokenRefreshMargin = 2 * time.Minute

// For mocking in tests
var newDefaultCredential = func() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

type tokenSource struct {
	cred  azcore.TokenCredential
	scope string

	mu    sync.Mutex
	token azcore.AccessToken
}

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Token != "" && time.Until(s.token.ExpiresOn) > tokenRefreshMargin {
		return s.token.Token, nil
	}

	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{s.scope}})
	if err != nil {
		return "", err
	}
	s.token = tok
	return tok.Token, nil
}

// bearerTokenMiddleware stamps every request with a token from the credential chain.
func bearerTokenMiddleware(cred azcore.TokenCredential, scope string) option.Middleware {
	src := &tokenSource{cred: cred, scope: scope}
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		token, err := src.Token(req.Context())
		if err != nil {
			return nil, fmt.Errorf("failed to acquire token for scope %s: %w", scope, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return next(req)
	}
}
