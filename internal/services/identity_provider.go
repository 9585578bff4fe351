package services

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// jwtIdentityProvider validates account access tokens locally against the
// account provider's RS256 public key.
type jwtIdentityProvider struct {
	publicKey *rsa.PublicKey
	issuer    string
}

func NewJWTIdentityProvider(publicKey *rsa.PublicKey, issuer string) IdentityProvider {
	return &jwtIdentityProvider{publicKey: publicKey, issuer: issuer}
}

func (p *jwtIdentityProvider) GetUser(_ context.Context, bearerToken string) (*models.AccountUser, error) {
	token, err := jwt.Parse(bearerToken, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, utils.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", utils.ErrUnauthenticated)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%w: missing subject claim", utils.ErrUnauthenticated)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", utils.ErrUnauthenticated)
	}
	email, _ := claims["email"].(string)

	return &models.AccountUser{ID: userID, Email: email}, nil
}
