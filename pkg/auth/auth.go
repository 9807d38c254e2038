package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

type Config struct {
	JWTSecret string        `yaml:"jwtSecret" envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `yaml:"tokenTTL" envconfig:"JWT_TTL" default:"24h"`
}

// Principal is the resolved caller of an operation.
type Principal struct {
	UserID int64
	Role   Role
	Name   string
}

type Claims struct {
	ID   int64  `json:"id"`
	Role Role   `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

type Issuer struct {
	key []byte
	ttl time.Duration
}

func NewIssuer(cfg Config) *Issuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{key: []byte(cfg.JWTSecret), ttl: ttl}
}

// Issue signs an HS256 token for p.
func (i *Issuer) Issue(p Principal) (string, time.Time, error) {
	expiresAt := time.Now().Add(i.ttl)
	claims := &Claims{
		ID:   p.UserID,
		Role: p.Role,
		Name: p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return token, expiresAt, nil
}

// Parse validates the signature and expiry of tokenStr.
func (i *Issuer) Parse(tokenStr string) (Principal, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.key, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: claims.ID, Role: claims.Role, Name: claims.Name}, nil
}

type principalKey struct{}

func SetAuthContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
