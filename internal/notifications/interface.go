package notifications

import "github.com/tickerpulse/ticker-mentions-bot/internal/models"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendSpikeReport(report *models.SpikeReport) error
}
