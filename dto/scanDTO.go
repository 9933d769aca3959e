package dto

import (
	"time"

	"tasknotify/scanner"
)

type ScanResponse struct {
	StartedAt  time.Time             `json:"started_at"`
	DurationMs int64                 `json:"duration_ms"`
	Failed     bool                  `json:"failed"`
	Created    int                   `json:"created"`
	Sweeps     []scanner.SweepResult `json:"sweeps"`
}

func NewScanResponse(r scanner.Report) ScanResponse {
	sweeps := r.Sweeps
	if sweeps == nil {
		sweeps = []scanner.SweepResult{}
	}
	return ScanResponse{
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Failed:     r.Failed(),
		Created:    r.Created(),
		Sweeps:     sweeps,
	}
}
