package marketplace

import "context"

// Notifier receives domain events. Implementations must not block the
// request for long and must swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, any) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
