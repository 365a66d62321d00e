package sim

// HistoryPoint is one hourly sample of the active census.
type HistoryPoint struct {
	Hour   int `json:"hour"`
	Active int `json:"active"`
}

// PatientView is one row of the vitals patient list: either an active
// encounter (TTL -1) or a recently exited one still inside its ledger TTL.
type PatientView struct {
	ID           string       `json:"id"`
	FacilityID   string       `json:"facility_id"`
	AssignedCTAS int          `json:"assigned_ctas"`
	Status       Status       `json:"status"`
	Stage        string       `json:"stage"`
	Disposition  Disposition  `json:"disposition,omitempty"`
	ResourceType ResourceType `json:"resource_type,omitempty"`
	TTL          int          `json:"ttl"`
}

// ExitRecord is one entry of the recent-exits ledger. Stage holds the exit
// destination (HOME, WARD or EXIT). Entries are pruned once TTL reaches zero.
type ExitRecord struct {
	ID           string      `json:"id"`
	FacilityID   string      `json:"facility_id"`
	AssignedCTAS int         `json:"assigned_ctas"`
	Status       Status      `json:"status"`
	Stage        string      `json:"stage"`
	Disposition  Disposition `json:"disposition"`
	TTL          int         `json:"ttl"`
}

// Vitals is the immutable per-session snapshot published at each tick
// boundary. Readers get the pointer the engine last published; the engine
// never mutates a published value.
type Vitals struct {
	// Census maps facility id to the count of encounters occupying a
	// resource (ROOMED or ADMITTED_NO_BED).
	Census map[string]int `json:"census"`

	Processed int `json:"processed"`
	LWBS      int `json:"lwbs"`
	SimHour   int `json:"sim_hour"`

	// History holds at most 24 hourly samples.
	History []HistoryPoint `json:"history"`

	// NEDOCS is the 1-6 network stress score bucketed from the
	// occupancy ratio.
	NEDOCS int `json:"nedocs"`

	HallwayPatients int `json:"hallway_patients"`

	// AvgLOS is the mean length of stay over the last completed visits,
	// in simulated hours, rounded to one decimal.
	AvgLOS float64 `json:"avg_los"`

	// Patients lists active encounters plus recent exits.
	Patients []PatientView `json:"patients"`
}
