package notification

import (
	"sync"
	"time"
)

const DefaultMaxHistory = 1000

type history struct {
	lock          sync.Mutex
	notifications []Notification
	max           int
}

func newHistory(max int) *history {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &history{max: max}
}

func (h *history) add(notification Notification) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.notifications = append(h.notifications, notification)
	if overflow := len(h.notifications) - h.max; overflow > 0 {
		h.notifications = append([]Notification(nil), h.notifications[overflow:]...)
	}
}

func (h *history) latest(limit int) []Notification {
	h.lock.Lock()
	defer h.lock.Unlock()

	start := 0
	if limit >= 0 && limit < len(h.notifications) {
		start = len(h.notifications) - limit
	}
	return append([]Notification(nil), h.notifications[start:]...)
}

func (h *history) filter(keep func(Notification) bool) []Notification {
	h.lock.Lock()
	defer h.lock.Unlock()

	result := make([]Notification, 0)
	for _, notification := range h.notifications {
		if keep(notification) {
			result = append(result, notification)
		}
	}
	return result
}

func (h *history) cleanupOlderThan(cutoff time.Time) int {
	h.lock.Lock()
	defer h.lock.Unlock()

	kept := make([]Notification, 0, len(h.notifications))
	for _, notification := range h.notifications {
		if notification.CreatedAt.After(cutoff) {
			kept = append(kept, notification)
		}
	}
	removed := len(h.notifications) - len(kept)
	h.notifications = kept
	return removed
}
