package event

// Type identifies a kind of event on the bus.
type Type string

const (
	// StepStarted fires when the loop begins a new thinking step.
	StepStarted Type = "step.started"
	// ActionProposed fires when the model proposes a tool call.
	ActionProposed Type = "action.proposed"
	// ObservationRecorded fires after an observation is appended to memory.
	ObservationRecorded Type = "observation.recorded"
	// PermissionRequired fires when the policy engine needs a user decision.
	PermissionRequired Type = "permission.required"
	// PermissionResolved fires when a pending permission request is answered.
	PermissionResolved Type = "permission.resolved"
	// StoreReloaded fires when the permission store is reloaded from disk.
	StoreReloaded Type = "store.reloaded"
	// LoopFinished fires when the loop reaches a terminal state.
	LoopFinished Type = "loop.finished"
)

// Event is a single bus message.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// StepStartedData accompanies StepStarted.
type StepStartedData struct {
	Step int `json:"step"`
}

// ActionProposedData accompanies ActionProposed.
type ActionProposedData struct {
	CallID string `json:"callID"`
	Tool   string `json:"tool"`
}

// ObservationRecordedData accompanies ObservationRecorded.
type ObservationRecordedData struct {
	CallID  string `json:"callID"`
	Success bool   `json:"success"`
}

// PermissionRequiredData accompanies PermissionRequired.
type PermissionRequiredData struct {
	ID     string `json:"id"`
	Tool   string `json:"tool"`
	Scope  string `json:"scope"`
	Danger string `json:"danger"`
	Title  string `json:"title"`
}

// PermissionResolvedData accompanies PermissionResolved.
type PermissionResolvedData struct {
	ID       string `json:"id"`
	Decision string `json:"decision"`
}

// StoreReloadedData accompanies StoreReloaded.
type StoreReloadedData struct {
	Records int `json:"records"`
}

// LoopFinishedData accompanies LoopFinished.
type LoopFinishedData struct {
	Reason string `json:"reason"`
	Steps  int    `json:"steps"`
}
