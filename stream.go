package stdiorpc

import (
	"context"
	"iter"
)

// NotificationsFromChannel adapts a notification channel to an iterator.
// The iterator completes when the channel is closed or ctx is done.
func NotificationsFromChannel(ctx context.Context, ch <-chan *Message) iter.Seq[*Message] {
	return func(yield func(*Message) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok || !yield(msg) {
					return
				}
			}
		}
	}
}

// FilterNotifications yields only the notifications for method.
func FilterNotifications(seq iter.Seq[*Message], method string) iter.Seq[*Message] {
	return func(yield func(*Message) bool) {
		for msg := range seq {
			if msg.Method != method {
				continue
			}

			if !yield(msg) {
				return
			}
		}
	}
}
