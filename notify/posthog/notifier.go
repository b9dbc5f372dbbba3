package posthog

import (
	"context"
	"log"

	"github.com/posthog/posthog-go"

	"github.com/KohlJary/geocass/models"
	"github.com/KohlJary/geocass/notify"
)

type posthogNotifier struct {
	client posthog.Client
	notify.BaseNotifier
}

func NewPosthogNotifier(client posthog.Client) notify.Notifier {
	return &posthogNotifier{
		client,
		notify.BaseNotifier{},
	}
}

var _ notify.Notifier = &posthogNotifier{}

func (n *posthogNotifier) UserRegistered(ctx context.Context, user *models.User) {
	err := n.client.Enqueue(posthog.Capture{
		DistinctId: user.Id,
		Event:      "user_registered",
		Properties: posthog.Properties{"username": user.Username},
	})
	if err != nil {
		log.Println("failed to enqueue posthog event:", err)
	}
}

func (n *posthogNotifier) DaemonSynced(ctx context.Context, daemon *models.Daemon) {
	err := n.client.Enqueue(posthog.Capture{
		DistinctId: daemon.OwnerId,
		Event:      "daemon_synced",
		Properties: posthog.Properties{
			"handle":     daemon.Handle,
			"visibility": string(daemon.Visibility),
		},
	})
	if err != nil {
		log.Println("failed to enqueue posthog event:", err)
	}
}

func (n *posthogNotifier) DaemonDeleted(ctx context.Context, ownerId, handle string) {
	err := n.client.Enqueue(posthog.Capture{
		DistinctId: ownerId,
		Event:      "daemon_deleted",
		Properties: posthog.Properties{"handle": handle},
	})
	if err != nil {
		log.Println("failed to enqueue posthog event:", err)
	}
}
