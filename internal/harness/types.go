package harness

// Step outcomes recorded in the trace.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq           int    `json:"seq"`
	Op            string `json:"op"` // "insert", "delete" or "page"
	UUID          string `json:"uuid,omitempty"`
	Cursor        string `json:"cursor,omitempty"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Count         *int   `json:"count,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one event per setup and flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains mismatch messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Alive lists the uuids alive at the end of the run, sorted.
	Alive []string `json:"alive"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Alive:  []string{},
	}
}

// AddError adds a mismatch message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace, numbering it from 1.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
