package notifier

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/config"
)

// New selects the notification transport once at startup
func New(cfg *config.NotificationConfig, logger *zap.Logger) (port.Notifier, error) {
	switch cfg.Transport {
	case config.TransportResendSDK:
		return NewResendSDKNotifier(cfg.ResendAPIKey, cfg.From, cfg.ResendBaseURL, nil, logger)
	case config.TransportResendHTTP:
		return NewResendHTTPNotifier(cfg.ResendAPIKey, cfg.From, cfg.ResendBaseURL, nil, logger), nil
	case config.TransportLark:
		return NewLarkNotifier(cfg.LarkAppID, cfg.LarkAppSecret, logger), nil
	case config.TransportLog, "":
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification transport %q", cfg.Transport)
	}
}

var (
	_ port.Notifier = (*ResendSDKNotifier)(nil)
	_ port.Notifier = (*ResendHTTPNotifier)(nil)
	_ port.Notifier = (*LarkNotifier)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
)
