package billing

import (
	"fmt"
	"strings"
)

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg Config, stripeCfg StripeConfig, paddleCfg PaddleConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "stripe", "":
		return NewStripeProvider(stripeCfg)
	case "paddle":
		return NewPaddleProvider(paddleCfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
