package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer provides the signing method and key used by the codec
type Signer interface {
	Method() jwt.SigningMethod
	Key() any
}

// HMACSigner signs with a shared secret
type HMACSigner struct {
	method *jwt.SigningMethodHMAC
	secret []byte
}

var _ Signer = (*HMACSigner)(nil)

// NewHMACSigner returns a signer for HS256, HS384 or HS512
func NewHMACSigner(alg string, secret []byte) (*HMACSigner, error) {
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, invalidConfig(fmt.Sprintf("unsupported signing algorithm %q", alg))
	}

	if len(secret) == 0 {
		return nil, invalidConfig("signing secret is required")
	}

	return &HMACSigner{
		method: method,
		secret: append([]byte(nil), secret...),
	}, nil
}

// SignerFromConfig builds the HMAC signer for cfg
func SignerFromConfig(cfg Config) (*HMACSigner, error) {
	return NewHMACSigner(cfg.GetSigningMethod(), cfg.GetSigningKey())
}

func (s *HMACSigner) Method() jwt.SigningMethod {
	return s.method
}

func (s *HMACSigner) Key() any {
	return s.secret
}
