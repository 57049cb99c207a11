package firebase

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"instapro/internal/domain/service"
)

// DevTokenVerifier accepts HS256 tokens signed with a shared secret. It
// stands in for Firebase ID tokens when AUTH_MODE=jwt.
type DevTokenVerifier struct {
	secret []byte
}

var _ service.TokenVerifier = (*DevTokenVerifier)(nil)

func NewDevTokenVerifier(secret string) *DevTokenVerifier {
	return &DevTokenVerifier{secret: []byte(secret)}
}

// Issue signs a token for uid, valid for ttl.
func (d *DevTokenVerifier) Issue(uid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
}

func (d *DevTokenVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return d.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
