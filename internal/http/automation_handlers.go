package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	herrors "nuvelon-admin/internal/http/errors"
	"nuvelon-admin/internal/scheduler"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	runJobErrorHandler          = herrors.NewErrorHandler("RunJob")
	toggleJobErrorHandler       = herrors.NewErrorHandler("ToggleJob")
	previewScheduleErrorHandler = herrors.NewErrorHandler("PreviewSchedule")
)

type runJobRequest struct {
	JobId string `json:"jobId" validate:"required"`
}

type toggleJobRequest struct {
	JobId   string `json:"jobId" validate:"required"`
	Enabled *bool  `json:"enabled" validate:"required"`
}

type schedulePreviewRequest struct {
	Schedule string `json:"schedule" validate:"required,crontabString"`
	Count    int    `json:"count" validate:"min=1,max=20"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type jobsResponse struct {
	Success bool            `json:"success"`
	Jobs    []scheduler.Job `json:"jobs"`
}

type schedulePreviewResponse struct {
	Success  bool        `json:"success"`
	Schedule string      `json:"schedule"`
	Timezone string      `json:"timezone"`
	Runs     []time.Time `json:"runs"`
}

func (as *adminServer) listJobsHandler(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, jobsResponse{Success: true, Jobs: as.Automation.JobsStatus()})
}

func (as *adminServer) runJobHandler(w http.ResponseWriter, req *http.Request) {
	rj := runJobRequest{}
	if !decodeJSON(w, req, runJobErrorHandler, &rj) {
		return
	}
	if !as.validateRequest(req.Context(), w, runJobErrorHandler, rj) {
		return
	}

	// the job outlives a dropped connection
	err := as.Automation.RunJob(context.WithoutCancel(req.Context()), rj.JobId)
	if err != nil {
		var handlerErr *scheduler.HandlerError
		msg := fmt.Sprintf("failed to run job %s", rj.JobId)
		if errors.As(err, &handlerErr) {
			msg = handlerErr.Error()
		}
		runJobErrorHandler.WriteAndLogError(
			w,
			msg,
			err,
			statusFor(err),
			log.Fields{"jobId": rj.JobId},
		)
		return
	}
	writeJSON(w, messageResponse{Success: true, Message: fmt.Sprintf("job %s executed", rj.JobId)})
}

func (as *adminServer) toggleJobHandler(w http.ResponseWriter, req *http.Request) {
	tj := toggleJobRequest{}
	if !decodeJSON(w, req, toggleJobErrorHandler, &tj) {
		return
	}
	if !as.validateRequest(req.Context(), w, toggleJobErrorHandler, tj) {
		return
	}

	if err := as.Automation.ToggleJob(tj.JobId, *tj.Enabled); err != nil {
		toggleJobErrorHandler.WriteAndLogError(
			w,
			fmt.Sprintf("failed to toggle job %s", tj.JobId),
			err,
			statusFor(err),
			log.Fields{"jobId": tj.JobId},
		)
		return
	}
	state := "disabled"
	if *tj.Enabled {
		state = "enabled"
	}
	writeJSON(w, messageResponse{Success: true, Message: fmt.Sprintf("job %s %s", tj.JobId, state)})
}

func (as *adminServer) previewScheduleHandler(w http.ResponseWriter, req *http.Request) {
	preview := schedulePreviewRequest{Schedule: req.URL.Query().Get("schedule"), Count: 5}
	if raw := req.URL.Query().Get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			previewScheduleErrorHandler.WriteAndLogError(
				w,
				"count must be a number",
				err,
				http.StatusBadRequest,
				log.Fields{"count": raw},
			)
			return
		}
		preview.Count = count
	}
	if !as.validateRequest(req.Context(), w, previewScheduleErrorHandler, preview) {
		return
	}

	runs := make([]time.Time, 0, preview.Count)
	from := time.Now()
	for i := 0; i < preview.Count; i++ {
		next, err := scheduler.NextRun(preview.Schedule, from, as.location)
		if err != nil {
			previewScheduleErrorHandler.WriteAndLogError(
				w,
				"failed to compute schedule",
				err,
				http.StatusBadRequest,
				log.Fields{"schedule": preview.Schedule},
			)
			return
		}
		runs = append(runs, next)
		from = next
	}
	writeJSON(w, schedulePreviewResponse{
		Success:  true,
		Schedule: preview.Schedule,
		Timezone: as.location.String(),
		Runs:     runs,
	})
}
