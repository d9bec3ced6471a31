package dashboard

import "errors"

// LoginConfig throttles case-worker login attempts per client address.
type LoginConfig struct {
	// RateLimit is the sustained number of login attempts per second.
	RateLimit float64 `koanf:"ratelimit"`
	Burst     int     `koanf:"burst"`
}

func DefaultLoginConfig() LoginConfig {
	return LoginConfig{
		RateLimit: 0.2,
		Burst:     5,
	}
}

func (c LoginConfig) Validate() error {
	if c.RateLimit <= 0 || c.Burst <= 0 {
		return errors.New("login.ratelimit and login.burst must be positive")
	}
	return nil
}
