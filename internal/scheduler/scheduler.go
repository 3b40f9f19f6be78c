package scheduler

import (
	"context"
	"fmt"
	"nuvelon-admin/internal/audit"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimezone  = "America/Sao_Paulo"
	DefaultMaxErrors = 3
)

type Handler func(ctx context.Context) error

type Job struct {
	Id         string     `json:"id"`
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Enabled    bool       `json:"enabled"`
	LastRun    *time.Time `json:"lastRun"`
	NextRun    *time.Time `json:"nextRun"`
	ErrorCount int        `json:"errorCount"`
	MaxErrors  int        `json:"maxErrors"`
	Handler    Handler    `json:"-"`
}

func (j Job) snapshot() Job {
	if j.LastRun != nil {
		lastRun := *j.LastRun
		j.LastRun = &lastRun
	}
	if j.NextRun != nil {
		nextRun := *j.NextRun
		j.NextRun = &nextRun
	}
	return j
}

type entry struct {
	job      Job
	schedule cron.Schedule
	cronId   cron.EntryID
	armed    bool
	// held for the whole handler call; scheduled firings skip when it is taken
	runLock sync.Mutex
}

// Scheduler keeps named jobs and fires them on their cron schedule. Bookkeeping happens under
// lock, handlers run outside of it.
type Scheduler struct {
	lock     sync.Mutex
	cron     *cron.Cron
	location *time.Location
	security audit.Logger
	jobs     map[string]*entry
	order    []string
	running  bool
	runCtx   context.Context
	inFlight sync.WaitGroup
	now      func() time.Time
}

func New(security audit.Logger, location *time.Location) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{})),
		),
		location: location,
		security: security,
		jobs:     make(map[string]*entry),
		runCtx:   context.Background(),
		now:      time.Now,
	}
}

// NextRun returns the first time strictly after from that matches the standard five-field
// expression, evaluated in location.
func NextRun(expression string, from time.Time, location *time.Location) (time.Time, error) {
	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from.In(location)), nil
}

func (s *Scheduler) AddJob(job Job) error {
	if job.Id == "" || job.Handler == nil {
		return fmt.Errorf("failed adding job %q: %w", job.Id, ErrorInvalidJob)
	}
	if job.MaxErrors <= 0 {
		job.MaxErrors = DefaultMaxErrors
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.jobs[job.Id]; ok {
		return fmt.Errorf("failed adding job %s: %w", job.Id, ErrorDuplicateJob)
	}
	job.ErrorCount = 0
	job.NextRun = nil
	e := &entry{job: job}
	s.jobs[job.Id] = e
	s.order = append(s.order, job.Id)
	if e.job.Enabled {
		s.arm(e)
	}

	log.WithFields(log.Fields{
		"jobId":   job.Id,
		"enabled": e.job.Enabled,
	}).Infof("Job %s added", job.Name)
	return nil
}

func (s *Scheduler) RemoveJob(id string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return false
	}
	s.disarm(e)
	delete(s.jobs, id)
	for i, jobId := range s.order {
		if jobId == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	log.WithField("jobId", id).Infof("Job %s removed", e.job.Name)
	return true
}

// RunJob executes the job now and waits for it, whether or not the job is enabled. When the
// same job is already running it waits for that run to finish first.
func (s *Scheduler) RunJob(ctx context.Context, id string) error {
	s.lock.Lock()
	e, ok := s.jobs[id]
	s.lock.Unlock()
	if !ok {
		return fmt.Errorf("failed running job %s: %w", id, ErrorJobNotFound)
	}

	e.runLock.Lock()
	defer e.runLock.Unlock()
	return s.execute(ctx, e, true)
}

func (s *Scheduler) ToggleJob(id string, enabled bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("failed toggling job %s: %w", id, ErrorJobNotFound)
	}

	if enabled {
		e.job.Enabled = true
		e.job.ErrorCount = 0
		s.arm(e)
	} else {
		e.job.Enabled = false
		s.disarm(e)
		e.job.NextRun = nil
	}

	log.WithFields(log.Fields{
		"jobId":   id,
		"enabled": e.job.Enabled,
	}).Infof("Job %s toggled", e.job.Name)
	return nil
}

// JobsStatus returns copies of every job in registration order.
func (s *Scheduler) JobsStatus() []Job {
	s.lock.Lock()
	defer s.lock.Unlock()

	jobs := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, s.jobs[id].job.snapshot())
	}
	return jobs
}

func (s *Scheduler) Job(id string) (Job, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.job.snapshot(), true
}

// Start arms the cron loop. ctx is handed to every scheduled handler invocation.
func (s *Scheduler) Start(ctx context.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.runCtx = ctx
	s.cron.Start()
	log.WithField("timezone", s.location.String()).Info("Job scheduler started")
}

// Stop halts future firings. Handlers already running are not interrupted; the returned
// context is done once they have all returned.
func (s *Scheduler) Stop() context.Context {
	s.lock.Lock()
	wasRunning := s.running
	s.running = false
	s.lock.Unlock()

	cronDone := s.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.inFlight.Wait()
		cancel()
	}()
	if wasRunning {
		log.Info("Job scheduler stopped")
	}
	return ctx
}

func (s *Scheduler) IsRunning() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

// arm (re)installs the cron entry of e. Must be called with s.lock held.
func (s *Scheduler) arm(e *entry) {
	s.disarm(e)

	schedule, err := cron.ParseStandard(e.job.Schedule)
	if err != nil {
		parseErr := &ScheduleParseError{JobId: e.job.Id, Schedule: e.job.Schedule, Err: err}
		log.WithFields(log.Fields{
			"jobId": e.job.Id,
			"error": parseErr,
		}).Error("Error scheduling job, disabling it")
		e.job.Enabled = false
		e.job.NextRun = nil
		return
	}

	e.schedule = schedule
	e.cronId = s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(e) }))
	e.armed = true
	next := schedule.Next(s.now().In(s.location))
	e.job.NextRun = &next

	log.WithFields(log.Fields{
		"jobId":   e.job.Id,
		"nextRun": next,
	}).Infof("Job %s scheduled", e.job.Name)
}

// disarm must be called with s.lock held.
func (s *Scheduler) disarm(e *entry) {
	if !e.armed {
		return
	}
	s.cron.Remove(e.cronId)
	e.armed = false
}

func (s *Scheduler) fire(e *entry) {
	if !e.runLock.TryLock() {
		log.WithField("jobId", e.job.Id).Warn("Job is still running, skipping scheduled run")
		return
	}
	defer e.runLock.Unlock()

	s.lock.Lock()
	ctx := s.runCtx
	s.lock.Unlock()

	// Scheduled failures are already counted and audited.
	_ = s.execute(ctx, e, false)
}

// execute runs the handler and records the outcome. The caller holds e.runLock.
func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) error {
	s.inFlight.Add(1)
	defer s.inFlight.Done()

	s.lock.Lock()
	if !manual && !e.job.Enabled {
		s.lock.Unlock()
		return nil
	}
	startedAt := s.now()
	e.job.LastRun = &startedAt
	id, name, handler := e.job.Id, e.job.Name, e.job.Handler
	s.lock.Unlock()

	log.WithFields(log.Fields{
		"jobId":  id,
		"manual": manual,
	}).Infof("Starting job %s", name)
	err := invoke(ctx, handler)

	s.lock.Lock()
	defer s.lock.Unlock()

	if err == nil {
		e.job.ErrorCount = 0
		if e.job.Enabled && e.armed {
			next := e.schedule.Next(s.now().In(s.location))
			e.job.NextRun = &next
		}
		log.WithFields(log.Fields{
			"jobId":    id,
			"duration": time.Since(startedAt),
		}).Infof("Job %s completed", name)
		return nil
	}

	e.job.ErrorCount++
	log.WithFields(log.Fields{
		"jobId":      id,
		"errorCount": e.job.ErrorCount,
		"error":      err,
	}).Errorf("Job %s failed", name)
	s.security.Log(audit.Event{
		Event: "JOB_FAILED",
		IP:    audit.SystemIP,
		Details: map[string]any{
			"jobId":      id,
			"jobName":    name,
			"error":      err.Error(),
			"errorCount": e.job.ErrorCount,
		},
		Success: false,
		Error:   err.Error(),
	})

	if e.job.ErrorCount >= e.job.MaxErrors && e.job.Enabled {
		e.job.Enabled = false
		s.disarm(e)
		e.job.NextRun = nil
		log.WithField("jobId", id).Errorf("Job %s disabled after %d consecutive failures", name, e.job.ErrorCount)
	}
	return &HandlerError{JobId: id, Err: err}
}

func invoke(ctx context.Context, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx)
}
