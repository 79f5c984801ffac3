// SPDX-License-Identifier: GPL-3.0-or-later

package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger is a fire-event source: C delivers a value each time the
// schedule fires, and Stop releases the underlying timer. Scheduler
// depends only on this interface, never on cron.Schedule/cron.Cron
// directly.
type Trigger interface {
	C() <-chan time.Time
	Stop()
}

// NewCronTrigger builds a [Trigger] from spec, backed by a dedicated
// single-entry robfig/cron/v3 scheduler. The returned channel is
// buffered with capacity 1 and fed by a non-blocking send: if a fire
// happens while the previous one is still unconsumed, it is dropped
// rather than queued, which is exactly the coalescing behavior §4.8
// requires of the scheduler as a whole ("one pending coalesced").
func NewCronTrigger(spec Spec) (Trigger, error) {
	loc := time.UTC
	if spec.Timezone != "" {
		l, err := time.LoadLocation(spec.Timezone)
		if err != nil {
			return nil, &Error{Kind: BadTimezone, Detail: fmt.Sprintf("schedule: unknown timezone %q: %v", spec.Timezone, err)}
		}
		loc = l
	}

	cronSched, err := buildSchedule(spec, loc)
	if err != nil {
		return nil, err
	}

	t := &cronTrigger{
		ch:    make(chan time.Time, 1),
		times: spec.Times,
	}
	t.cron = cron.New(cron.WithLocation(loc))
	t.cron.Schedule(cronSched, cron.FuncJob(t.fire))
	t.cron.Start()
	return t, nil
}

func buildSchedule(spec Spec, loc *time.Location) (cron.Schedule, error) {
	switch {
	case spec.At != "":
		hour, minute, err := parseClock(spec.At)
		if err != nil {
			return nil, err
		}
		if spec.RepeatingEvery > 0 {
			// robfig/cron has no native "daily at HH:MM, then every D"
			// schedule; RepeatingEvery combined with At is built as a
			// plain fixed-interval trigger of period RepeatingEvery, and
			// At's time of day is not used. Times is still enforced by
			// the fire-counting wrapper below.
			return cron.Every(spec.RepeatingEvery), nil
		}
		sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
		if err != nil {
			return nil, &Error{Kind: BadSpec, Detail: fmt.Sprintf("schedule: at %q: %v", spec.At, err)}
		}
		return sched, nil
	case spec.RepeatingEvery > 0:
		return cron.Every(spec.RepeatingEvery), nil
	case spec.Every > 0:
		return cron.Every(spec.Every), nil
	default:
		return nil, &Error{Kind: BadSpec, Detail: "schedule: one of every, at, or repeating_every must be set"}
	}
}

func parseClock(at string) (hour, minute int, err error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return 0, 0, &Error{Kind: BadSpec, Detail: fmt.Sprintf("schedule: at %q must be HH:MM", at)}
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, &Error{Kind: BadSpec, Detail: fmt.Sprintf("schedule: at %q must be HH:MM", at)}
	}
	return hour, minute, nil
}

type cronTrigger struct {
	cron *cron.Cron
	ch   chan time.Time

	mu        sync.Mutex
	times     int
	fireCount int
}

func (t *cronTrigger) C() <-chan time.Time { return t.ch }

func (t *cronTrigger) fire() {
	t.mu.Lock()
	if t.times > 0 && t.fireCount >= t.times {
		t.mu.Unlock()
		return
	}
	t.fireCount++
	exhausted := t.times > 0 && t.fireCount >= t.times
	t.mu.Unlock()

	select {
	case t.ch <- time.Now():
	default:
	}
	if exhausted {
		t.cron.Stop()
	}
}

func (t *cronTrigger) Stop() {
	t.cron.Stop()
}
