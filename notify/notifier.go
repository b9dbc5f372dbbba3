package notify

import (
	"context"

	"github.com/KohlJary/geocass/models"
)

type Notifier interface {
	UserRegistered(ctx context.Context, user *models.User)

	DaemonSynced(ctx context.Context, daemon *models.Daemon)
	DaemonDeleted(ctx context.Context, ownerId, handle string)
}

// BaseNotifier is a listener that does nothing
type BaseNotifier struct{}

var _ Notifier = &BaseNotifier{}

func (m *BaseNotifier) UserRegistered(ctx context.Context, user *models.User) {}

func (m *BaseNotifier) DaemonSynced(ctx context.Context, daemon *models.Daemon)   {}
func (m *BaseNotifier) DaemonDeleted(ctx context.Context, ownerId, handle string) {}
