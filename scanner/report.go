package scanner

import (
	"fmt"
	"strings"
	"time"
)

// SweepResult counts what one sweep did. Err is empty when the sweep
// completed without failures.
type SweepResult struct {
	Name      string `json:"name"`
	Matched   int    `json:"matched"`
	Created   int    `json:"created"`
	Marked    int    `json:"marked"`
	Conflicts int    `json:"conflicts"`
	Deleted   int    `json:"deleted"`
	Err       string `json:"error,omitempty"`
}

type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Sweeps    []SweepResult `json:"sweeps"`
}

func (r Report) Failed() bool {
	for _, s := range r.Sweeps {
		if s.Err != "" {
			return true
		}
	}
	return false
}

func (r Report) Sweep(name string) (SweepResult, bool) {
	for _, s := range r.Sweeps {
		if s.Name == name {
			return s, true
		}
	}
	return SweepResult{}, false
}

// Created is the number of notifications inserted by all sweeps.
func (r Report) Created() int {
	total := 0
	for _, s := range r.Sweeps {
		total += s.Created
	}
	return total
}

func (r Report) summary() string {
	parts := make([]string, 0, len(r.Sweeps))
	for _, s := range r.Sweeps {
		state := "ok"
		if s.Err != "" {
			state = "failed"
		}
		parts = append(parts, fmt.Sprintf("%s=%s(matched=%d created=%d marked=%d conflicts=%d deleted=%d)",
			s.Name, state, s.Matched, s.Created, s.Marked, s.Conflicts, s.Deleted))
	}
	return strings.Join(parts, " ")
}
