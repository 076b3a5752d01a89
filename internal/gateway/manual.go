package gateway

import (
	"context"
)

// manualProvider covers instruction-based gateways (bank transfer, crypto).
// Initiate hands back the configured instructions; there is no provider API
// to verify against, settlement is confirmed by an operator.
type manualProvider struct {
	instructions string
}

func (p *manualProvider) Initiate(_ context.Context, req InitiateRequest) (Initiation, error) {
	return Initiation{
		ProviderRef:  req.Reference,
		Instructions: p.instructions,
	}, nil
}

func (p *manualProvider) Verify(context.Context, string) (Verification, error) {
	return Verification{}, ErrManualGateway
}
