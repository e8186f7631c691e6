package gateway

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/gateway"
)

var ErrNativeUnavailable = errors.New("native whisper backend is not compiled in")

// New builds the gateway backend selected by configuration.
func New(cfg *config.Config, logger *slog.Logger) (gateway.Gateway, error) {
	switch cfg.GatewayBackend {
	case config.GatewayBackendNative:
		if !NativeAvailable() {
			return nil, fmt.Errorf("%w: rebuild with -tags whispercpp or set GATEWAY_BACKEND=stub", ErrNativeUnavailable)
		}
		return NewNativeGateway(logger), nil
	case config.GatewayBackendCloud:
		return NewCloudGateway(CloudSpeechConfig{
			ProjectID:       cfg.GoogleCloudProjectID,
			CredentialsJSON: cfg.GoogleCloudCredentialsJSON,
			Language:        cfg.Language,
			Location:        cfg.GoogleCloudSpeechLocation,
			Model:           cfg.GoogleCloudSpeechModel,
		}, logger), nil
	case config.GatewayBackendStub:
		return NewStubGateway(logger), nil
	default:
		return nil, fmt.Errorf("unknown gateway backend %q", cfg.GatewayBackend)
	}
}
