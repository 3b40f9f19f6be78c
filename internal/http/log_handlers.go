package http

import (
	"net/http"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/notification"

	log "github.com/sirupsen/logrus"
)

type notificationsResponse struct {
	Success       bool                        `json:"success"`
	Notifications []notification.Notification `json:"notifications"`
}

type securityEventsResponse struct {
	Success bool          `json:"success"`
	Events  []audit.Event `json:"events"`
}

func (as *adminServer) notificationsHandler(w http.ResponseWriter, req *http.Request) {
	limit, err := parseLimit(req)
	if err != nil {
		notificationsErrorHandler.WriteAndLogError(w, "invalid limit", err, http.StatusBadRequest, log.Fields{})
		return
	}

	query := req.URL.Query()
	var notifications []notification.Notification
	switch {
	case query.Get("type") != "":
		notifications = as.Notifications.ByType(notification.Type(query.Get("type")))
	case query.Get("recipient") != "":
		notifications = as.Notifications.ByRecipient(query.Get("recipient"))
	default:
		notifications = as.Notifications.History(limit)
	}
	if recipient := query.Get("recipient"); recipient != "" && query.Get("type") != "" {
		filtered := notifications[:0]
		for _, n := range notifications {
			if n.Recipient == recipient {
				filtered = append(filtered, n)
			}
		}
		notifications = filtered
	}
	if len(notifications) > limit {
		notifications = notifications[len(notifications)-limit:]
	}
	writeJSON(w, notificationsResponse{Success: true, Notifications: notifications})
}

func (as *adminServer) securityEventsHandler(w http.ResponseWriter, req *http.Request) {
	limit, err := parseLimit(req)
	if err != nil {
		securityEventsErrorHandler.WriteAndLogError(w, "invalid limit", err, http.StatusBadRequest, log.Fields{})
		return
	}
	writeJSON(w, securityEventsResponse{Success: true, Events: as.Security.Recent(limit)})
}
