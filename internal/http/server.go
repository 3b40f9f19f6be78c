package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/http/auth"
	herrors "nuvelon-admin/internal/http/errors"
	"nuvelon-admin/internal/http/ratelimit"
	"nuvelon-admin/internal/http/validation"
	"nuvelon-admin/internal/model"
	"nuvelon-admin/internal/notification"
	"nuvelon-admin/internal/scheduler"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Automation interface {
	JobsStatus() []scheduler.Job
	RunJob(ctx context.Context, id string) error
	ToggleJob(id string, enabled bool) error
}

type Clients interface {
	CreateClient(ctx context.Context, client model.Client, actor string) (model.Client, error)
	GetClient(ctx context.Context, id model.ClientId) (model.Client, error)
	ClientHistory(ctx context.Context, id model.ClientId) ([]model.HistoryEntry, error)
	RenewClient(ctx context.Context, id model.ClientId, planId model.PlanId, actor string) (model.Client, error)
	CancelClient(ctx context.Context, id model.ClientId, reason, actor string) (model.Client, error)
	SuspendClient(ctx context.Context, id model.ClientId, reason, actor string) (model.Client, error)
	ReactivateClient(ctx context.Context, id model.ClientId, actor string) (model.Client, error)
	Statistics(ctx context.Context) (model.ClientStatistics, error)
}

type Notifications interface {
	History(limit int) []notification.Notification
	ByType(notificationType notification.Type) []notification.Notification
	ByRecipient(recipient string) []notification.Notification
}

type SecurityEvents interface {
	audit.Logger
	Recent(limit int) []audit.Event
}

type Services struct {
	Automation    Automation
	Clients       Clients
	Notifications Notifications
	Security      SecurityEvents
	Storage       model.ClientStorage
}

type Config struct {
	Addr            string
	JWTSecret       string
	RateLimit       int
	RateLimitWindow time.Duration
	Location        *time.Location
	RequestTimeout  time.Duration
}

const defaultListLimit = 50

type adminServer struct {
	Services
	validate       *validator.Validate
	location       *time.Location
	requestTimeout time.Duration
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "error forming response data", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}

// decodeJSON reads a strict JSON body into v and answers the request itself when that fails.
func decodeJSON(w http.ResponseWriter, req *http.Request, eh *herrors.ErrorHandler, v interface{}) bool {
	contentType := req.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		eh.WriteAndLogError(
			w,
			"failed to parse media type",
			err,
			http.StatusBadRequest,
			log.Fields{"header": contentType},
		)
		return false
	}
	if mediaType != "application/json" {
		eh.WriteAndLogError(
			w,
			"expect application/json Content-Type",
			errors.New("Content-Type error"),
			http.StatusUnsupportedMediaType,
			log.Fields{"media type": mediaType},
		)
		return false
	}
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err = dec.Decode(v); err != nil {
		eh.WriteAndLogError(
			w,
			"failed to parse request body",
			err,
			http.StatusBadRequest,
			log.Fields{},
		)
		return false
	}
	return true
}

func (as *adminServer) validateRequest(
	ctx context.Context,
	w http.ResponseWriter,
	eh *herrors.ErrorHandler,
	v interface{},
) bool {
	err := as.validate.StructCtx(ctx, v)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		eh.WriteAndLogValidationErrors(w, validationErrors, log.Fields{"request": v})
	} else {
		eh.WriteAndLogError(w, "failed to validate request", err, http.StatusInternalServerError, log.Fields{})
	}
	return false
}

func statusFor(err error) int {
	if errors.Is(err, model.ErrorNotFound) || errors.Is(err, scheduler.ErrorJobNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func actor(ctx context.Context) string {
	user, _ := auth.UserFrom(ctx)
	return user.Id
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Infof("%s %s", r.Method, r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func NewServer(services Services, cfg Config) (*http.Server, error) {
	server := &adminServer{
		Services:       services,
		validate:       validation.New(),
		location:       cfg.Location,
		requestTimeout: cfg.RequestTimeout,
	}
	if server.location == nil {
		server.location = time.UTC
	}
	if server.requestTimeout <= 0 {
		server.requestTimeout = 5 * time.Second
	}
	if err := validation.RegisterClientValidation(server.validate, services.Storage); err != nil {
		return nil, fmt.Errorf("error registering client validation: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimit, cfg.RateLimitWindow, services.Security)
	verifier := auth.NewVerifier(cfg.JWTSecret, services.Security)

	router := mux.NewRouter()
	router.StrictSlash(true)
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/automation/jobs/", server.listJobsHandler).Methods("GET")
	api.HandleFunc("/automation/jobs/", server.runJobHandler).Methods("POST")
	api.HandleFunc("/automation/jobs/", server.toggleJobHandler).Methods("PUT")
	api.HandleFunc("/automation/schedule/", server.previewScheduleHandler).Methods("GET")
	api.HandleFunc("/clients/", server.createClientHandler).Methods("POST")
	api.HandleFunc("/clients/statistics/", server.statisticsHandler).Methods("GET")
	api.HandleFunc("/clients/{id}/", server.getClientHandler).Methods("GET")
	api.HandleFunc("/clients/{id}/history/", server.clientHistoryHandler).Methods("GET")
	api.HandleFunc("/clients/{id}/actions/", server.clientActionHandler).Methods("POST")
	api.HandleFunc("/notifications/", server.notificationsHandler).Methods("GET")
	api.HandleFunc("/security/events/", server.securityEventsHandler).Methods("GET")
	router.Use(loggingMiddleware)
	api.Use(limiter.Middleware, verifier.Middleware)
	return &http.Server{Addr: cfg.Addr, Handler: router}, nil
}
