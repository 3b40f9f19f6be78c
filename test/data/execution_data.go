package data

import (
	"fmt"
	"sync"
	"time"
)

type jobExecutionData struct {
	previousExecutionTime *time.Time
	lastExecutionTime     *time.Time
	interval              uint
}

const IntervalEps = time.Second * 10

// PingJobs maps the id of each test job to its cron interval in minutes.
var PingJobs = map[string]uint{
	"ping-every-minute":    1,
	"ping-every-2-minutes": 2,
}

type ExecutionData struct {
	data map[string]*jobExecutionData
	lock *sync.Mutex
}

func NewExecutionData() *ExecutionData {
	executionData := ExecutionData{make(map[string]*jobExecutionData), &sync.Mutex{}}
	executionData.Reset()
	return &executionData
}

func (ed *ExecutionData) SignalExecution(jobId string) {
	ed.lock.Lock()
	defer ed.lock.Unlock()
	if execData := ed.data[jobId]; execData != nil {
		execData.previousExecutionTime = execData.lastExecutionTime
		now := time.Now()
		execData.lastExecutionTime = &now
	}
}

func (ed *ExecutionData) Reset() {
	ed.lock.Lock()
	defer ed.lock.Unlock()
	for id, interval := range PingJobs {
		ed.data[id] = &jobExecutionData{nil, nil, interval}
	}
}

func (ed *ExecutionData) MaxInterval() uint {
	ed.lock.Lock()
	defer ed.lock.Unlock()
	var result uint = 0
	for _, v := range ed.data {
		if v.interval > result {
			result = v.interval
		}
	}
	return result
}

func (ed *ExecutionData) ValidateExecutionData() error {
	ed.lock.Lock()
	defer ed.lock.Unlock()

	for id, v := range ed.data {
		if v.previousExecutionTime == nil || v.lastExecutionTime == nil {
			return fmt.Errorf("job %s did not execute twice", id)
		}
		maxDifference := time.Duration(v.interval)*time.Minute + IntervalEps
		actualDifference := v.lastExecutionTime.Sub(*v.previousExecutionTime)
		if actualDifference > maxDifference {
			return fmt.Errorf(
				"time difference between executions %s exceeded the maximum of %s for job %s",
				actualDifference,
				maxDifference,
				id,
			)
		}
	}
	return nil
}
