package config

import "time"

type Token struct {
	Secret string        `envconfig:"JWT_SECRET" required:"true"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"1h"`
}

var _ TokenConfig = Token{}

func (t Token) GetSigningSecret() []byte {
	return []byte(t.Secret)
}

func (t Token) GetTokenTTL() time.Duration {
	return t.TTL
}
