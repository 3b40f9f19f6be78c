package audit

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultMaxEvents = 1000

// SystemIP marks events raised by background work rather than by a request.
const SystemIP = "system"

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	UserId    string         `json:"userId,omitempty"`
	Username  string         `json:"username,omitempty"`
	IP        string         `json:"ip"`
	UserAgent string         `json:"userAgent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

type Logger interface {
	Log(event Event)
}

// SecurityLog retains the most recent events in memory and mirrors each one to the process log.
type SecurityLog struct {
	lock      sync.Mutex
	events    []Event
	maxEvents int
	now       func() time.Time
}

func NewSecurityLog(maxEvents int) *SecurityLog {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &SecurityLog{maxEvents: maxEvents, now: time.Now}
}

func (sl *SecurityLog) Log(event Event) {
	event.Timestamp = sl.now()

	sl.lock.Lock()
	sl.events = append(sl.events, event)
	if overflow := len(sl.events) - sl.maxEvents; overflow > 0 {
		sl.events = append([]Event(nil), sl.events[overflow:]...)
	}
	sl.lock.Unlock()

	entry := log.WithFields(log.Fields{
		"event":   event.Event,
		"ip":      event.IP,
		"success": event.Success,
	})
	if event.UserId != "" {
		entry = entry.WithField("userId", event.UserId)
	}
	if len(event.Details) > 0 {
		entry = entry.WithField("details", event.Details)
	}
	if event.Success {
		entry.Info("Security event")
	} else {
		entry.WithField("error", event.Error).Warn("Security event")
	}
}

// Recent returns up to limit of the newest events, oldest first.
func (sl *SecurityLog) Recent(limit int) []Event {
	sl.lock.Lock()
	defer sl.lock.Unlock()

	start := 0
	if limit >= 0 && limit < len(sl.events) {
		start = len(sl.events) - limit
	}
	return append([]Event(nil), sl.events[start:]...)
}

func (sl *SecurityLog) ByType(eventType string) []Event {
	return sl.filter(func(event Event) bool { return event.Event == eventType })
}

func (sl *SecurityLog) ByUser(userId string) []Event {
	return sl.filter(func(event Event) bool { return event.UserId == userId })
}

func (sl *SecurityLog) ByIP(ip string) []Event {
	return sl.filter(func(event Event) bool { return event.IP == ip })
}

// CleanupOlderThan drops events logged before cutoff and reports how many were removed.
func (sl *SecurityLog) CleanupOlderThan(cutoff time.Time) int {
	sl.lock.Lock()
	defer sl.lock.Unlock()

	kept := make([]Event, 0, len(sl.events))
	for _, event := range sl.events {
		if event.Timestamp.After(cutoff) {
			kept = append(kept, event)
		}
	}
	removed := len(sl.events) - len(kept)
	sl.events = kept
	return removed
}

func (sl *SecurityLog) filter(keep func(Event) bool) []Event {
	sl.lock.Lock()
	defer sl.lock.Unlock()

	result := make([]Event, 0)
	for _, event := range sl.events {
		if keep(event) {
			result = append(result, event)
		}
	}
	return result
}
