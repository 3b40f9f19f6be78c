package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrorJobNotFound  = errors.New("job not found")
	ErrorDuplicateJob = errors.New("job already exists")
	ErrorInvalidJob   = errors.New("invalid job")
)

// HandlerError is returned by RunJob when the job handler fails. The failure has already been
// counted against the job by the time the caller sees it.
type HandlerError struct {
	JobId string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("job %s failed: %v", e.JobId, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

type ScheduleParseError struct {
	JobId    string
	Schedule string
	Err      error
}

func (e *ScheduleParseError) Error() string {
	return fmt.Sprintf("invalid schedule %q for job %s: %v", e.Schedule, e.JobId, e.Err)
}

func (e *ScheduleParseError) Unwrap() error {
	return e.Err
}
