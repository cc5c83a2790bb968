package util

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of a session token. The token is only as good
// as the session row it names; callers must still check the session exists.
type SessionClaims struct {
	SessionID string `json:"sid"`
	UserID    int64  `json:"uid"`
	Expiry    int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
}

func (c SessionClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.Expiry == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.Expiry, 0)), nil
}

func (c SessionClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c SessionClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c SessionClaims) GetIssuer() (string, error) {
	return "", nil
}

func (c SessionClaims) GetSubject() (string, error) {
	return c.SessionID, nil
}

func (c SessionClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

// SignSessionToken signs claims with HS256.
func SignSessionToken(claims SessionClaims, key []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ParseSessionToken verifies the signature and expiry of a token signed by
// SignSessionToken. now supplies the clock used for the expiry check.
func ParseSessionToken(token string, key []byte, now func() time.Time) (*SessionClaims, error) {
	var claims SessionClaims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}
