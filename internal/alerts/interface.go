package alerts

import "github.com/phantomsec/threatwatch/internal/models"

// Notifier defines the contract for outbound alert channels
type Notifier interface {
	Name() string
	Notify(alert *models.Alert) error
}
