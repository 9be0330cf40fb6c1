package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// signingMethods are the asymmetric algorithms identity providers publish
// keys for. Shared-secret and "none" tokens never verify.
var signingMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256"}

// TokenVerifier turns a raw JWT into trusted claims.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// VerifierConfig configures token verification.
type VerifierConfig struct {
	// EnableVerification false accepts any well-formed token without checking
	// its signature or expiry. Local development only.
	EnableVerification bool
	// Issuers maps each trusted issuer to its JWKS URL.
	Issuers map[string]string
	// Audience, when set, must appear in the token's aud claim.
	Audience string
	// Leeway tolerates clock skew on exp, nbf and iat.
	Leeway time.Duration
}

// Verifier checks token signatures against the JWKS of each trusted issuer.
type Verifier struct {
	verify bool
	keys   map[string]keyfunc.Keyfunc
	parser *jwt.Parser
	cancel context.CancelFunc
}

// NewVerifier creates a verifier. With verification enabled it fetches every
// issuer's key set and keeps refreshing them until Close or ctx ends.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if !cfg.EnableVerification {
		return &Verifier{
			parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
			cancel: func() {},
		}, nil
	}
	if len(cfg.Issuers) == 0 {
		return nil, errors.New("token verification is enabled but no JWKS issuers are configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(signingMethods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	ctx, cancel := context.WithCancel(ctx)
	v := &Verifier{
		verify: true,
		keys:   make(map[string]keyfunc.Keyfunc, len(cfg.Issuers)),
		parser: jwt.NewParser(opts...),
		cancel: cancel,
	}
	for issuer, jwksURL := range cfg.Issuers {
		kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("loading JWKS for issuer %s: %w", issuer, err)
		}
		v.keys[issuer] = kf
	}
	return v, nil
}

// Verify parses token and, when verification is enabled, checks its
// signature, issuer, expiry and audience.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	if !v.verify {
		if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
			return nil, errors.Join(ErrInvalidToken, err)
		}
		return claims, nil
	}

	if _, err := v.parser.ParseWithClaims(token, claims, v.keyFor); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

// keyFor selects the key set of the token's issuer.
func (v *Verifier) keyFor(token *jwt.Token) (any, error) {
	issuer, err := token.Claims.GetIssuer()
	if err != nil {
		return nil, err
	}
	kf, ok := v.keys[issuer]
	if !ok {
		return nil, fmt.Errorf("untrusted issuer %q", issuer)
	}
	return kf.Keyfunc(token)
}

// Close stops background key refresh.
func (v *Verifier) Close() {
	v.cancel()
}

var _ TokenVerifier = (*Verifier)(nil)
