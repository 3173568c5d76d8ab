package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Entry describes a scheduled target in a transport-friendly format.
type Entry struct {
	Path              string  `json:"path"`
	IsDir             bool    `json:"isDir"`
	Kind              string  `json:"kind,omitempty"`
	DeleteAt          string  `json:"deleteAt"`
	DeleteAtEpoch     float64 `json:"deleteAtEpoch"`
	Periodic          bool    `json:"periodic"`
	RecurrenceSeconds float64 `json:"recurrenceSeconds,omitempty"`
	Due               bool    `json:"due"`
}

// ScheduleListResponse wraps the schedule for API responses.
type ScheduleListResponse struct {
	Entries []Entry `json:"entries"`
}

// AddRequest schedules one or more paths. Exactly one of In and At is set.
// In is a duration such as "90", "30m" or "7d"; for periodic entries it is
// also the recurrence. At is an RFC3339 timestamp.
type AddRequest struct {
	Paths    []string `json:"paths"`
	In       string   `json:"in,omitempty"`
	At       string   `json:"at,omitempty"`
	Periodic bool     `json:"periodic,omitempty"`
	Kind     string   `json:"kind,omitempty"`
}

// AddResponse returns the entries as persisted.
type AddResponse struct {
	Entries []Entry `json:"entries"`
}

// RemoveResponse lists which paths were unscheduled.
type RemoveResponse struct {
	Removed []string `json:"removed"`
	Missing []string `json:"missing,omitempty"`
}

// ChildFailure names a directory child a wipe could not remove.
type ChildFailure struct {
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

// Outcome mirrors one reconciliation decision.
type Outcome struct {
	Path          string         `json:"path"`
	Action        string         `json:"action"`
	IsDir         bool           `json:"isDir"`
	Periodic      bool           `json:"periodic"`
	Error         string         `json:"error,omitempty"`
	ChildFailures []ChildFailure `json:"childFailures,omitempty"`
	NextDeleteAt  string         `json:"nextDeleteAt,omitempty"`
}

// ReconcileResponse summarizes an on-demand pass.
type ReconcileResponse struct {
	Changed  bool           `json:"changed"`
	Entries  int            `json:"entries"`
	Counts   map[string]int `json:"counts"`
	Outcomes []Outcome      `json:"outcomes"`
}

// CheckerStatus summarizes checker loop state.
type CheckerStatus struct {
	Running     bool           `json:"running"`
	StartedAt   string         `json:"startedAt,omitempty"`
	LastPassAt  string         `json:"lastPassAt,omitempty"`
	LastPassID  string         `json:"lastPassId,omitempty"`
	LastTrigger string         `json:"lastTrigger,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
	Passes      int            `json:"passes"`
	Failures    int            `json:"failures"`
	Entries     int            `json:"entries"`
	Totals      map[string]int `json:"totals"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	ScheduleFile string        `json:"scheduleFile"`
	LockFilePath string        `json:"lockFilePath"`
	HistoryPath  string        `json:"historyPath,omitempty"`
	Checker      CheckerStatus `json:"checker"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
