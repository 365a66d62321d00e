package sim

import "time"

// Status is the flow state of an encounter within the department.
type Status string

const (
	StatusWaiting           Status = "WAITING"
	StatusRoomed            Status = "ROOMED"
	StatusWaitingForResults Status = "WAITING_FOR_RESULTS"
	StatusAdmittedNoBed     Status = "ADMITTED_NO_BED"
	StatusLWBS              Status = "LWBS"
	StatusDischarged        Status = "DISCHARGED"
)

// ResourceType is the physical spot an encounter currently occupies.
type ResourceType string

const (
	ResourceNone    ResourceType = "NONE"
	ResourceBed     ResourceType = "BED"
	ResourceChair   ResourceType = "CHAIR"
	ResourceHallway ResourceType = "HALLWAY"
)

// Stage is the clinical step an encounter is in once it has been roomed.
type Stage string

const (
	StageTriage    Stage = "TRIAGE"
	StageAssessing Stage = "ASSESSING"
	StageTesting   Stage = "TESTING"
	StageTreating  Stage = "TREATING"
	StageBoarding  Stage = "BOARDING"
)

// Disposition is the planned outcome once assessment is complete.
// It is empty until first rooming assigns one.
type Disposition string

const (
	DispositionNone      Disposition = ""
	DispositionAdmit     Disposition = "ADMIT"
	DispositionDischarge Disposition = "DISCHARGE"
	// DispositionUnknown marks exit-ledger entries for patients who left
	// before a disposition was assigned.
	DispositionUnknown Disposition = "UNKNOWN"
)

// Exit destinations recorded in the ledger's stage column.
const (
	DestinationHome = "HOME"
	DestinationWard = "WARD"
	DestinationExit = "EXIT"
)

// Encounter is the mutable record of one patient visit. It is created on
// arrival and removed from the active set on LWBS or discharge. The owning
// engine is the only writer.
type Encounter struct {
	ID          string    `json:"id"`
	FacilityID  string    `json:"facility_id"`
	PatientAge  int       `json:"patient_age"`
	Symptom     string    `json:"symptom"`
	ArrivalTick int64     `json:"arrival_tick"`
	ArrivalTime time.Time `json:"arrival_time"`

	AssignedCTAS int    `json:"assigned_ctas"`
	IsSerious    bool   `json:"is_serious"`
	Notes        string `json:"clinical_notes"`

	Status       Status       `json:"status"`
	ResourceType ResourceType `json:"resource_type"`
	Stage        Stage        `json:"stage"`
	Disposition  Disposition  `json:"disposition,omitempty"`

	// Waited counts ticks spent in WAITING. It does not advance in
	// WAITING_FOR_RESULTS.
	Waited        int `json:"wait_time_remaining"`
	LabTimer      int `json:"lab_timer"`
	TreatmentLeft int `json:"treatment_time_remaining"`
}

// ShortID is the last four characters of the encounter id, used in log lines
// and alert explanations.
func (e *Encounter) ShortID() string {
	if len(e.ID) < 4 {
		return e.ID
	}
	return e.ID[len(e.ID)-4:]
}

// room seats the encounter on a resource, keeping the status/resource pair
// legal: HALLWAY implies ADMITTED_NO_BED, BED and CHAIR imply ROOMED.
func (e *Encounter) room(res ResourceType) {
	e.ResourceType = res
	if res == ResourceHallway {
		e.Status = StatusAdmittedNoBed
	} else {
		e.Status = StatusRoomed
	}
}

// releaseToResults moves the encounter to the internal waiting room,
// freeing its resource.
func (e *Encounter) releaseToResults() {
	e.Status = StatusWaitingForResults
	e.ResourceType = ResourceNone
}

// Alert is one finding from the intelligence auditor. Alerts are append-only.
type Alert struct {
	ID          string    `json:"id"`
	EncounterID string    `json:"encounter_id"`
	RuleID      string    `json:"rule_violated"`
	Severity    RiskLevel `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
	Explanation string    `json:"explanation"`
}
