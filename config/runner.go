// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"time"

	"github.com/capport-dev/capport/schedule"
)

// FindRunner looks up a named runner spec from doc (§3 Runner spec
// entity).
func FindRunner(doc *Document, name string) (RunnerSpec, error) {
	for _, r := range doc.Runners {
		if r.Name == name {
			return r, nil
		}
	}
	return RunnerSpec{}, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("config: runner %q not found", name)}
}

// ToSchedule converts a ScheduleSpec's YAML duration/clock strings into a
// [schedule.Spec] (§4.8).
func (s ScheduleSpec) ToSchedule() (schedule.Spec, error) {
	every, err := parseOptionalDuration(s.Every)
	if err != nil {
		return schedule.Spec{}, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("schedule: invalid every %q: %v", s.Every, err)}
	}
	repeating, err := parseOptionalDuration(s.RepeatingEvery)
	if err != nil {
		return schedule.Spec{}, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("schedule: invalid repeating_every %q: %v", s.RepeatingEvery, err)}
	}
	return schedule.Spec{
		Timezone:       s.Timezone,
		Every:          every,
		At:             s.At,
		RepeatingEvery: repeating,
		Times:          s.Times,
	}, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
