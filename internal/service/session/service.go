package session

import (
	"crypto/rand"
	"encoding/base64"
)

// Service issues opaque guest session identifiers. A session is
// bearer-by-knowledge: the ID itself is the credential for the guest cart,
// so nothing is stored server-side until the first cart write.
type Service struct{}

func New() *Service {
	return &Service{}
}

func (s *Service) Issue() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
