package services

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

const (
	// FieldSessionIssuer is the "iss" of every field session token.
	FieldSessionIssuer = "turnflow"
	fieldSessionType   = "field_session"
)

// SessionService mints and verifies cleaner field sessions.
type SessionService interface {
	Issue(subjectID uuid.UUID, phone string) (token string, expiresAt time.Time, err error)
	Parse(token string) (*models.FieldSession, error)
}

type sessionService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
	now        func() time.Time
}

func NewSessionService(cfg *config.Config) SessionService {
	return &sessionService{
		privateKey: cfg.RSAPrivateKey,
		publicKey:  cfg.RSAPublicKey,
		ttl:        cfg.FieldSessionTTL,
		now:        time.Now,
	}
}

func (s *sessionService) Issue(subjectID uuid.UUID, phone string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"iss":   FieldSessionIssuer,
		"sub":   subjectID.String(),
		"phone": phone,
		"role":  string(models.RoleCleaner),
		"typ":   fieldSessionType,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"jti":   uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign field session: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *sessionService) Parse(tokenString string) (*models.FieldSession, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.publicKey, nil
	},
		jwt.WithIssuer(FieldSessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
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
	if typ, _ := claims["typ"].(string); typ != fieldSessionType {
		return nil, fmt.Errorf("%w: not a field session", utils.ErrUnauthenticated)
	}
	role, _ := claims["role"].(string)
	if models.Role(role) != models.RoleCleaner {
		return nil, fmt.Errorf("%w: unexpected session role %q", utils.ErrUnauthenticated, role)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%w: missing subject", utils.ErrUnauthenticated)
	}
	subjectID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", utils.ErrUnauthenticated)
	}
	phone, _ := claims["phone"].(string)

	fs := &models.FieldSession{
		SubjectID: subjectID,
		Phone:     phone,
		Role:      models.RoleCleaner,
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		fs.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		fs.ExpiresAt = exp.Time
	}
	return fs, nil
}
