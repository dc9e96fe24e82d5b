package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalid     = errors.New("invalid token")
	ErrCredentials = errors.New("invalid credentials")
)

// Claims identify who may query the parameter server: an operator or a
// node agent (Subject is then the node hostname).
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

const (
	RoleOperator = "operator"
	RoleAgent    = "agent"
)

// Issuer signs and checks HS256 tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Enabled reports whether a secret is configured; without one the server
// runs open.
func (i *Issuer) Enabled() bool { return i != nil && len(i.secret) > 0 }

func (i *Issuer) Generate(subject, role string) (string, error) {
	if !i.Enabled() {
		return "", errors.New("auth secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	if !i.Enabled() {
		return nil, ErrInvalid
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalid
	}
	if claims, ok := token.Claims.(*Claims); ok {
		return claims, nil
	}
	return nil, ErrInvalid
}

// HashPassword is used by `vce-server token --hash` to produce the
// password_hash config value.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, password string) error {
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrCredentials
	}
	return nil
}
