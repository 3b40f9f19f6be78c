package http

import (
	"context"
	"fmt"
	"net/http"
	herrors "nuvelon-admin/internal/http/errors"
	"nuvelon-admin/internal/model"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

var (
	createClientErrorHandler   = herrors.NewErrorHandler("CreateClient")
	getClientErrorHandler      = herrors.NewErrorHandler("GetClient")
	clientHistoryErrorHandler  = herrors.NewErrorHandler("ClientHistory")
	clientActionErrorHandler   = herrors.NewErrorHandler("ClientAction")
	statisticsErrorHandler     = herrors.NewErrorHandler("Statistics")
	notificationsErrorHandler  = herrors.NewErrorHandler("Notifications")
	securityEventsErrorHandler = herrors.NewErrorHandler("SecurityEvents")
)

type requestClient struct {
	Name          string     `json:"name" validate:"required,min=2,max=255"`
	Email         string     `json:"email" validate:"omitempty,email,max=255"`
	Phone         string     `json:"phone" validate:"omitempty,phone"`
	PlanId        string     `json:"planId" validate:"required,planExists"`
	PurchaseDate  *time.Time `json:"purchaseDate"`
	Status        string     `json:"status" validate:"omitempty,clientStatus"`
	Notes         string     `json:"notes" validate:"max=1000"`
	PaymentMethod string     `json:"paymentMethod" validate:"max=50"`
}

type renewRequest struct {
	PlanId string `json:"planId" validate:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type clientSummary struct {
	Id          model.ClientId     `json:"id"`
	Name        string             `json:"name"`
	Status      model.ClientStatus `json:"status"`
	RenewalDate *time.Time         `json:"renewalDate,omitempty"`
}

type clientActionResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Client  clientSummary `json:"client"`
}

type clientResponse struct {
	Success bool         `json:"success"`
	Client  model.Client `json:"client"`
}

type historyResponse struct {
	Success bool                 `json:"success"`
	History []model.HistoryEntry `json:"history"`
}

type statisticsResponse struct {
	Success    bool                   `json:"success"`
	Statistics model.ClientStatistics `json:"statistics"`
}

func (as *adminServer) storageContext(req *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(req.Context(), as.requestTimeout)
}

func (as *adminServer) createClientHandler(w http.ResponseWriter, req *http.Request) {
	rc := requestClient{}
	if !decodeJSON(w, req, createClientErrorHandler, &rc) {
		return
	}
	timeoutCtx, cancel := as.storageContext(req)
	defer cancel()
	if !as.validateRequest(timeoutCtx, w, createClientErrorHandler, rc) {
		return
	}

	client := model.Client{
		Name:    rc.Name,
		Email:   rc.Email,
		Phone:   rc.Phone,
		PlanId:  model.PlanId(rc.PlanId),
		Status:  model.ClientStatus(rc.Status),
		Notes:   rc.Notes,
		Payment: model.PaymentInfo{Method: rc.PaymentMethod},
	}
	if rc.PurchaseDate != nil {
		client.PurchaseDate = *rc.PurchaseDate
	}
	created, err := as.Clients.CreateClient(timeoutCtx, client, actor(req.Context()))
	if err != nil {
		createClientErrorHandler.WriteAndLogError(
			w,
			"failed to save new client",
			err,
			statusFor(err),
			log.Fields{"request client": rc},
		)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, clientResponse{Success: true, Client: created})
}

func (as *adminServer) getClientHandler(w http.ResponseWriter, req *http.Request) {
	id := model.ClientId(mux.Vars(req)["id"])
	timeoutCtx, cancel := as.storageContext(req)
	defer cancel()
	client, err := as.Clients.GetClient(timeoutCtx, id)
	if err != nil {
		getClientErrorHandler.WriteAndLogError(
			w,
			fmt.Sprintf("failed to get client by id %s", id),
			err,
			statusFor(err),
			log.Fields{},
		)
		return
	}
	writeJSON(w, clientResponse{Success: true, Client: client})
}

func (as *adminServer) clientHistoryHandler(w http.ResponseWriter, req *http.Request) {
	id := model.ClientId(mux.Vars(req)["id"])
	timeoutCtx, cancel := as.storageContext(req)
	defer cancel()
	history, err := as.Clients.ClientHistory(timeoutCtx, id)
	if err != nil {
		clientHistoryErrorHandler.WriteAndLogError(
			w,
			fmt.Sprintf("failed to get history of client %s", id),
			err,
			statusFor(err),
			log.Fields{},
		)
		return
	}
	writeJSON(w, historyResponse{Success: true, History: history})
}

func (as *adminServer) clientActionHandler(w http.ResponseWriter, req *http.Request) {
	id := model.ClientId(mux.Vars(req)["id"])
	action := req.URL.Query().Get("action")
	by := actor(req.Context())
	timeoutCtx, cancel := as.storageContext(req)
	defer cancel()

	var (
		client  model.Client
		err     error
		message string
	)
	switch action {
	case "renew":
		rr := renewRequest{}
		if !decodeJSON(w, req, clientActionErrorHandler, &rr) || !as.validateRequest(timeoutCtx, w, clientActionErrorHandler, rr) {
			return
		}
		client, err = as.Clients.RenewClient(timeoutCtx, id, model.PlanId(rr.PlanId), by)
		message = "client renewed"
	case "cancel", "suspend":
		rr := reasonRequest{}
		if !decodeJSON(w, req, clientActionErrorHandler, &rr) || !as.validateRequest(timeoutCtx, w, clientActionErrorHandler, rr) {
			return
		}
		if action == "cancel" {
			client, err = as.Clients.CancelClient(timeoutCtx, id, rr.Reason, by)
			message = "client cancelled"
		} else {
			client, err = as.Clients.SuspendClient(timeoutCtx, id, rr.Reason, by)
			message = "client suspended"
		}
	case "reactivate":
		client, err = as.Clients.ReactivateClient(timeoutCtx, id, by)
		message = "client reactivated"
	default:
		clientActionErrorHandler.WriteAndLogErrorMsg(
			w,
			"invalid action, use: renew, cancel, suspend, reactivate",
			http.StatusBadRequest,
			log.Fields{"action": action},
		)
		return
	}

	if err != nil {
		clientActionErrorHandler.WriteAndLogError(
			w,
			fmt.Sprintf("failed to %s client %s", action, id),
			err,
			statusFor(err),
			log.Fields{"action": action},
		)
		return
	}

	summary := clientSummary{Id: client.Id, Name: client.Name, Status: client.Status}
	if action == "renew" {
		renewalDate := client.RenewalDate
		summary.RenewalDate = &renewalDate
	}
	writeJSON(w, clientActionResponse{Success: true, Message: message, Client: summary})
}

func (as *adminServer) statisticsHandler(w http.ResponseWriter, req *http.Request) {
	timeoutCtx, cancel := as.storageContext(req)
	defer cancel()
	stats, err := as.Clients.Statistics(timeoutCtx)
	if err != nil {
		statisticsErrorHandler.WriteAndLogError(
			w,
			"failed to compute client statistics",
			err,
			http.StatusInternalServerError,
			log.Fields{},
		)
		return
	}
	writeJSON(w, statisticsResponse{Success: true, Statistics: stats})
}

func parseLimit(req *http.Request) (int, error) {
	raw := req.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive number, got %q", raw)
	}
	return limit, nil
}
