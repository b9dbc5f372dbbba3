package notify

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/KohlJary/geocass/log"
	"github.com/KohlJary/geocass/models"
)

type mergedNotifier struct {
	notifiers []Notifier
	logger    *slog.Logger
}

func NewMergedNotifier(notifiers []Notifier, logger *slog.Logger) Notifier {
	return &mergedNotifier{notifiers, logger}
}

var _ Notifier = &mergedNotifier{}

// fanout calls the same method on all notifiers concurrently
func (m *mergedNotifier) fanout(method string, ctx context.Context, args ...any) {
	ctx = log.IntoContext(ctx, m.logger.With("method", method))
	var wg sync.WaitGroup
	for _, n := range m.notifiers {
		wg.Add(1)
		go func(notifier Notifier) {
			defer wg.Done()
			v := reflect.ValueOf(notifier).MethodByName(method)
			in := make([]reflect.Value, len(args)+1)
			in[0] = reflect.ValueOf(ctx)
			for i, arg := range args {
				in[i+1] = reflect.ValueOf(arg)
			}
			v.Call(in)
		}(n)
	}
	wg.Wait()
}

func (m *mergedNotifier) UserRegistered(ctx context.Context, user *models.User) {
	m.fanout("UserRegistered", ctx, user)
}

func (m *mergedNotifier) DaemonSynced(ctx context.Context, daemon *models.Daemon) {
	m.fanout("DaemonSynced", ctx, daemon)
}

func (m *mergedNotifier) DaemonDeleted(ctx context.Context, ownerId, handle string) {
	m.fanout("DaemonDeleted", ctx, ownerId, handle)
}
