package security

import "time"

// Authenticator turns a signed credential into a user id.
type Authenticator interface {
	Authenticate(token string) (userID string, err error)
}

// Issuer is an Authenticator that can also mint credentials.
type Issuer interface {
	Authenticator
	Issue(userID string) (token string, expireAt time.Time, err error)
}

// JWTAuthenticator validates HMAC signed JWTs.
type JWTAuthenticator struct {
	opts Options
}

func NewJWTAuthenticator(opts Options) *JWTAuthenticator {
	return &JWTAuthenticator{opts: opts}
}

func (a *JWTAuthenticator) Authenticate(token string) (string, error) {
	claims, err := Verify(a.opts, token, "")
	if err != nil {
		return "", err
	}
	return claims.UserID(), nil
}

func (a *JWTAuthenticator) Issue(userID string) (string, time.Time, error) {
	tok, _, exp, err := Generate(a.opts, userID, nil)
	return tok, exp, err
}
