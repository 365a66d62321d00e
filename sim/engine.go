package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProductivityFactor scales clinical work faster than real time. It divides
// baseline lab and treatment timers and multiplies the per-MD throughput.
// Independent from the 600x wallclock scaling of the tick driver.
const ProductivityFactor = 5.0

const (
	startSimHour    = 8
	hourAdvanceProb = 1.0 / 60.0

	baseArrivalRate = 0.25
	misTriageProb   = 0.2

	// diversionFactor reduces arrivals when the waiting queue exceeds
	// diversionQueueRatio times the facility's physical beds.
	diversionFactor     = 0.1
	diversionQueueRatio = 3

	assessBranchProb  = 1.0 / 15.0
	testReleaseProb   = 0.8
	admitProb         = 0.15
	labBaseNightMins  = 90
	labBaseDayMins    = 45

	historyCap    = 24
	losHistoryCap = 150

	exitTTLDischarge = 50
	exitTTLLWBS      = 300
)

// lwbsThresholdTicks maps CTAS level to the waiting time beyond which a
// patient leaves without being seen. CTAS 1 and 2 never leave.
var lwbsThresholdTicks = map[int]int{3: 600, 4: 240, 5: 180}

// EngineConfig groups engine construction parameters.
type EngineConfig struct {
	Seed int64
	// Ref is the reference data to simulate against. Nil selects the
	// embedded network seed.
	Ref *RefData
}

// Engine is one session's ED flow simulation. It advances in ticks
// (1 tick = 1 simulated minute) and publishes an immutable Vitals snapshot
// at each tick boundary. All methods must be called from a single goroutine
// or externally serialized; the session manager holds a per-session lock.
type Engine struct {
	ref     *RefData
	auditor *Auditor

	clockRNG    *rand.Rand
	arrivalsRNG *rand.Rand
	flowRNG     *rand.Rand
	admitRNG    *rand.Rand

	clock   int64
	simHour int

	active      []*Encounter
	alerts      []Alert
	recentExits []ExitRecord
	history     []HistoryPoint
	losHistory  []float64

	totalProcessed int
	lwbsCount      int

	vitals *Vitals
}

// NewEngine builds an engine from the config and publishes its initial
// (empty) snapshot, so readers never observe a nil Vitals.
func NewEngine(cfg EngineConfig) *Engine {
	ref := cfg.Ref
	if ref == nil {
		ref = DefaultRefData()
	}
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	e := &Engine{
		ref:         ref,
		auditor:     NewAuditor(ref),
		clockRNG:    rng.ForSubsystem(SubsystemClock),
		arrivalsRNG: rng.ForSubsystem(SubsystemArrivals),
		flowRNG:     rng.ForSubsystem(SubsystemFlow),
		admitRNG:    rng.ForSubsystem(SubsystemAdmission),
		simHour:     startSimHour,
	}
	e.publishVitals()
	return e
}

// Clock returns the number of completed ticks.
func (e *Engine) Clock() int64 { return e.clock }

// SimHour returns the current simulated hour (0-23).
func (e *Engine) SimHour() int { return e.simHour }

// Processed returns the total number of encounters ever created.
func (e *Engine) Processed() int { return e.totalProcessed }

// LWBSCount returns the number of patients who left without being seen.
func (e *Engine) LWBSCount() int { return e.lwbsCount }

// Vitals returns the snapshot published at the last tick boundary.
// The returned value is immutable.
func (e *Engine) Vitals() *Vitals { return e.vitals }

// Alerts returns a copy of the alert log.
func (e *Engine) Alerts() []Alert {
	out := make([]Alert, len(e.alerts))
	copy(out, e.alerts)
	return out
}

// AlertCount returns the size of the alert log.
func (e *Engine) AlertCount() int { return len(e.alerts) }

// ActiveCensus counts all active encounters per facility, regardless of
// status. Used by the facilities boundary view.
func (e *Engine) ActiveCensus() map[string]int {
	census := make(map[string]int)
	for _, enc := range e.active {
		census[enc.FacilityID]++
	}
	return census
}

// Tick advances the simulation by one minute: hour advance, arrivals and
// audit, stage transitions and LWBS, exit pruning, two-pass admission, then
// snapshot publication. On an invariant violation the tick is abandoned, the
// previous snapshot stands, and the error is returned for the driver to log.
func (e *Engine) Tick() error {
	e.clock++

	e.advanceHour()
	e.runArrivals()

	budgets := e.dischargeBudgets()
	for _, enc := range e.active {
		e.advanceEncounter(enc, budgets[enc.FacilityID])
	}
	e.removeTerminal()
	e.pruneExits()

	e.admit(budgets)

	if err := e.checkInvariants(); err != nil {
		return fmt.Errorf("tick %d: %w", e.clock, err)
	}
	e.publishVitals()
	return nil
}

// advanceHour moves the simulated hour forward with p=1/60 per tick and
// records the hourly census sample.
func (e *Engine) advanceHour() {
	if e.clockRNG.Float64() >= hourAdvanceProb {
		return
	}
	e.simHour = (e.simHour + 1) % 24
	e.history = append(e.history, HistoryPoint{Hour: e.simHour, Active: len(e.active)})
	if len(e.history) > historyCap {
		e.history = e.history[1:]
	}

	maxWait := 0
	for _, enc := range e.active {
		if enc.Status == StatusWaiting && enc.Waited > maxWait {
			maxWait = enc.Waited
		}
	}
	logrus.Debugf("[SIM] Hour %02d:00 - Active: %d, Max Wait: %.1fh",
		e.simHour, len(e.active), float64(maxWait)/60)
}

// hourlyArrivalProbability is the diurnal arrival curve.
func hourlyArrivalProbability(hour int) float64 {
	switch {
	case hour >= 0 && hour < 8:
		return baseArrivalRate * 0.2
	case hour >= 8 && hour < 20:
		return baseArrivalRate * 1.5
	default:
		return baseArrivalRate * 1.0
	}
}

// arrivalProbability applies ambulance diversion on top of the diurnal
// curve: a facility whose waiting queue exceeds three times its physical
// beds receives a tenth of the arrivals.
func (e *Engine) arrivalProbability(f *Facility) float64 {
	prob := hourlyArrivalProbability(e.simHour)
	waiting := 0
	for _, enc := range e.active {
		if enc.FacilityID == f.ID && enc.Status == StatusWaiting {
			waiting++
		}
	}
	if waiting > diversionQueueRatio*f.PhysicalBeds {
		prob *= diversionFactor
	}
	return prob
}

func (e *Engine) runArrivals() {
	for i := range e.ref.Facilities {
		f := &e.ref.Facilities[i]
		if e.arrivalsRNG.Float64() < e.arrivalProbability(f) {
			e.generateArrival(f.ID)
		}
	}
}

// generateArrival creates a new encounter from a random clinical rule,
// possibly mis-triaged, and audits it immediately.
func (e *Engine) generateArrival(facilityID string) {
	rule := e.ref.ClinicalRules[e.arrivalsRNG.Intn(len(e.ref.ClinicalRules))]
	assignedCTAS := rule.RequiredCTAS
	isSerious := rule.RiskLevel == RiskHigh || rule.RiskLevel == RiskCritical
	notes := fmt.Sprintf("Patient presents with %s.", rule.Symptom)

	if e.arrivalsRNG.Float64() < misTriageProb {
		if e.arrivalsRNG.Float64() < 0.5 {
			// Swap in a wrong CTAS level.
			wrong := make([]int, 0, 4)
			for c := 1; c <= 5; c++ {
				if c != rule.RequiredCTAS {
					wrong = append(wrong, c)
				}
			}
			assignedCTAS = wrong[e.arrivalsRNG.Intn(len(wrong))]
		} else {
			isSerious = false
			notes += " slightly concerned about hospitalization."
		}
	}

	enc := &Encounter{
		ID:           uuid.NewString(),
		FacilityID:   facilityID,
		PatientAge:   18 + e.arrivalsRNG.Intn(73),
		Symptom:      rule.Symptom,
		ArrivalTick:  e.clock,
		ArrivalTime:  time.Now(),
		AssignedCTAS: assignedCTAS,
		IsSerious:    isSerious,
		Notes:        notes,
		Status:       StatusWaiting,
		ResourceType: ResourceNone,
		Stage:        StageTriage,
	}
	logrus.Infof("[SIM] [%s] Patient P-%s arrived (%s). Assigned CTAS: %d",
		facilityID, enc.ShortID(), enc.Symptom, enc.AssignedCTAS)
	e.admitArrival(enc)
}

// InjectArrival feeds a pre-built encounter into the engine exactly as a
// generated arrival: it joins the active set, counts toward processed, and
// is audited. Missing flow fields default to a fresh waiting-room state.
func (e *Engine) InjectArrival(enc *Encounter) {
	if enc.ID == "" {
		enc.ID = uuid.NewString()
	}
	if enc.Status == "" {
		enc.Status = StatusWaiting
	}
	if enc.ResourceType == "" {
		enc.ResourceType = ResourceNone
	}
	if enc.Stage == "" {
		enc.Stage = StageTriage
	}
	if enc.ArrivalTime.IsZero() {
		enc.ArrivalTime = time.Now()
	}
	if enc.ArrivalTick == 0 {
		enc.ArrivalTick = e.clock
	}
	e.admitArrival(enc)
}

func (e *Engine) admitArrival(enc *Encounter) {
	e.active = append(e.active, enc)
	e.totalProcessed++
	if alert := e.auditor.Audit(enc, e.clock); alert != nil {
		e.alerts = append(e.alerts, *alert)
		logrus.Warnf("[INTEL] ALERT DETECTED: %s", alert.Explanation)
	}
}

// dischargeBudgets computes the per-facility per-tick throughput rate
// (MD count x productivity / 60). The same rate serves as the discharge
// gate probability and, stochastically rounded, as the admission quota.
func (e *Engine) dischargeBudgets() map[string]float64 {
	budgets := make(map[string]float64, len(e.ref.Facilities))
	for i := range e.ref.Facilities {
		f := &e.ref.Facilities[i]
		md := f.StaffingFor(e.simHour).MDCount
		budgets[f.ID] = float64(md) * 1.0 * ProductivityFactor / 60
	}
	return budgets
}

func (e *Engine) advanceEncounter(enc *Encounter, budget float64) {
	switch enc.Status {
	case StatusRoomed, StatusAdmittedNoBed:
		e.advanceStage(enc, budget)
	case StatusWaitingForResults:
		// Consuming time but no resources; re-rooming happens in the
		// admission planner once the timer expires.
		enc.LabTimer--
	case StatusWaiting:
		e.advanceWaiting(enc)
	}
}

func (e *Engine) advanceStage(enc *Encounter, budget float64) {
	switch enc.Stage {
	case StageAssessing:
		if e.flowRNG.Float64() < assessBranchProb {
			if enc.AssignedCTAS <= 3 {
				enc.Stage = StageTesting
				enc.LabTimer = e.scaledLabTime()
			} else {
				enc.Stage = StageTreating
			}
		}
	case StageTesting:
		// CTAS 1 never leaves the bed; others usually wait for results
		// in the internal waiting room, freeing the resource.
		if enc.AssignedCTAS > 1 && e.flowRNG.Float64() < testReleaseProb {
			enc.releaseToResults()
			return
		}
		enc.LabTimer--
		if enc.LabTimer <= 0 {
			if enc.Disposition == DispositionAdmit {
				enc.Stage = StageBoarding
			} else {
				enc.Stage = StageTreating
			}
		}
	case StageTreating:
		enc.TreatmentLeft--
		if enc.TreatmentLeft <= 0 && e.flowRNG.Float64() < budget {
			e.discharge(enc, DestinationHome, DispositionDischarge)
		}
	case StageBoarding:
		enc.TreatmentLeft--
		if enc.TreatmentLeft <= 0 && e.flowRNG.Float64() < budget {
			e.discharge(enc, DestinationWard, DispositionAdmit)
		}
	default:
		enc.Stage = StageAssessing
	}
}

func (e *Engine) advanceWaiting(enc *Encounter) {
	enc.Waited++
	threshold, ok := lwbsThresholdTicks[enc.AssignedCTAS]
	if !ok || enc.Waited <= threshold {
		return
	}
	enc.Status = StatusLWBS
	e.lwbsCount++
	e.logExit(enc, StatusLWBS, DestinationExit, DispositionUnknown, exitTTLLWBS)
	logrus.Infof("[SIM] [%s] Patient P-%s left without being seen after %d min (CTAS %d)",
		enc.FacilityID, enc.ShortID(), enc.Waited, enc.AssignedCTAS)
}

func (e *Engine) discharge(enc *Encounter, destination string, disp Disposition) {
	enc.Status = StatusDischarged
	e.logExit(enc, StatusDischarged, destination, disp, exitTTLDischarge)

	losHours := float64(e.clock-enc.ArrivalTick) / 60
	e.losHistory = append(e.losHistory, losHours)
	if len(e.losHistory) > losHistoryCap {
		e.losHistory = e.losHistory[1:]
	}
}

func (e *Engine) logExit(enc *Encounter, status Status, destination string, disp Disposition, ttl int) {
	e.recentExits = append(e.recentExits, ExitRecord{
		ID:           enc.ID,
		FacilityID:   enc.FacilityID,
		AssignedCTAS: enc.AssignedCTAS,
		Status:       status,
		Stage:        destination,
		Disposition:  disp,
		TTL:          ttl,
	})
}

// removeTerminal drops LWBS and discharged encounters from the active set.
func (e *Engine) removeTerminal() {
	survivors := e.active[:0]
	for _, enc := range e.active {
		if enc.Status == StatusLWBS || enc.Status == StatusDischarged {
			continue
		}
		survivors = append(survivors, enc)
	}
	// Clear trailing pointers so removed encounters can be collected.
	for i := len(survivors); i < len(e.active); i++ {
		e.active[i] = nil
	}
	e.active = survivors
}

// pruneExits ages the exit ledger and drops spent entries.
func (e *Engine) pruneExits() {
	kept := e.recentExits[:0]
	for i := range e.recentExits {
		e.recentExits[i].TTL--
		if e.recentExits[i].TTL > 0 {
			kept = append(kept, e.recentExits[i])
		}
	}
	e.recentExits = kept
}

// census tracks live occupancy for one facility during admission.
type census struct {
	bed, chair, hallway int
}

func (c census) total() int { return c.bed + c.chair + c.hallway }

func (e *Engine) censusByFacility() map[string]census {
	counts := make(map[string]census, len(e.ref.Facilities))
	for _, enc := range e.active {
		if enc.Status != StatusRoomed && enc.Status != StatusAdmittedNoBed {
			continue
		}
		c := counts[enc.FacilityID]
		switch enc.ResourceType {
		case ResourceBed:
			c.bed++
		case ResourceChair:
			c.chair++
		case ResourceHallway:
			c.hallway++
		}
		counts[enc.FacilityID] = c
	}
	return counts
}

// admit runs the two-pass admission planner for every facility under the
// shared per-tick quota: results-ready re-entry first, then the waiting
// queue in (CTAS, arrival) order.
func (e *Engine) admit(budgets map[string]float64) {
	counts := e.censusByFacility()
	for i := range e.ref.Facilities {
		f := &e.ref.Facilities[i]
		c := counts[f.ID]

		rate := budgets[f.ID]
		quota := int(rate)
		if e.admitRNG.Float64() < rate-math.Floor(rate) {
			quota++
		}

		admitted := e.admitResultsReady(f, &c, quota)
		e.admitWaiting(f, &c, quota, admitted)
	}
}

// admitResultsReady re-rooms encounters whose lab results are back.
// Returns the number of quota slots consumed.
func (e *Engine) admitResultsReady(f *Facility, c *census, quota int) int {
	admitted := 0
	for _, enc := range e.active {
		if admitted >= quota {
			break
		}
		if enc.FacilityID != f.ID || enc.Status != StatusWaitingForResults || enc.LabTimer > 0 {
			continue
		}

		var res ResourceType
		switch {
		case enc.AssignedCTAS >= 2 && c.chair < f.ChairCapacity:
			res = ResourceChair
			c.chair++
		case c.bed < f.PhysicalBeds:
			res = ResourceBed
			c.bed++
		case c.total() < f.SurgeCapacity:
			res = ResourceHallway
			c.hallway++
		default:
			continue
		}

		enc.room(res)
		if enc.Disposition == DispositionAdmit {
			enc.Stage = StageBoarding
		} else {
			enc.Stage = StageTreating
		}
		admitted++
		logrus.Debugf("[SIM] Patient P-%s Results Back -> %s.", enc.ShortID(), res)
	}
	return admitted
}

// admitWaiting rooms waiting patients in (CTAS, arrival tick) order until
// the quota or all capacity is exhausted.
func (e *Engine) admitWaiting(f *Facility, c *census, quota, admitted int) {
	var waiting []*Encounter
	for _, enc := range e.active {
		if enc.FacilityID == f.ID && enc.Status == StatusWaiting {
			waiting = append(waiting, enc)
		}
	}
	sort.SliceStable(waiting, func(i, j int) bool {
		if waiting[i].AssignedCTAS != waiting[j].AssignedCTAS {
			return waiting[i].AssignedCTAS < waiting[j].AssignedCTAS
		}
		return waiting[i].ArrivalTick < waiting[j].ArrivalTick
	})

	for _, enc := range waiting {
		if admitted >= quota {
			break
		}
		res, ok := pickResource(enc.AssignedCTAS, f, c)
		if !ok {
			continue
		}
		enc.room(res)
		e.initFlow(enc)
		admitted++
	}
}

// pickResource applies the triage preference table: CTAS 1 needs a bed,
// everyone else prefers a chair, and the hallway is the last resort for all.
func pickResource(ctas int, f *Facility, c *census) (ResourceType, bool) {
	if ctas == 1 {
		if c.bed < f.PhysicalBeds {
			c.bed++
			return ResourceBed, true
		}
		if c.total() < f.SurgeCapacity {
			c.hallway++
			return ResourceHallway, true
		}
		return ResourceNone, false
	}

	if c.chair < f.ChairCapacity {
		c.chair++
		return ResourceChair, true
	}
	if c.bed < f.PhysicalBeds {
		c.bed++
		return ResourceBed, true
	}
	if c.total() < f.SurgeCapacity {
		c.hallway++
		return ResourceHallway, true
	}
	return ResourceNone, false
}

// initFlow sets the pipeline parameters on first rooming.
func (e *Engine) initFlow(enc *Encounter) {
	enc.Stage = StageAssessing
	enc.LabTimer = e.scaledLabTime()

	if e.flowRNG.Float64() < admitProb {
		enc.Disposition = DispositionAdmit
		enc.TreatmentLeft = scaleTreatment(e.uniformInt(1440, 2880))
		return
	}
	enc.Disposition = DispositionDischarge
	switch {
	case enc.AssignedCTAS <= 2:
		enc.TreatmentLeft = scaleTreatment(e.uniformInt(240, 480))
	case enc.AssignedCTAS == 3:
		enc.TreatmentLeft = scaleTreatment(e.uniformInt(180, 360))
	default:
		enc.TreatmentLeft = scaleTreatment(e.uniformInt(60, 180))
	}
}

// scaledLabTime is the lab turnaround in ticks: slower overnight, divided by
// the productivity factor.
func (e *Engine) scaledLabTime() int {
	base := labBaseDayMins
	if e.simHour >= 0 && e.simHour < 8 {
		base = labBaseNightMins
	}
	return scaleTreatment(base)
}

func scaleTreatment(mins int) int {
	return int(float64(mins) / ProductivityFactor)
}

// uniformInt draws uniformly from [lo, hi] inclusive.
func (e *Engine) uniformInt(lo, hi int) int {
	return lo + e.flowRNG.Intn(hi-lo+1)
}

// checkInvariants sweeps the active set for capacity or status/resource
// violations. A non-nil return abandons the tick.
func (e *Engine) checkInvariants() error {
	counts := e.censusByFacility()
	for i := range e.ref.Facilities {
		f := &e.ref.Facilities[i]
		c := counts[f.ID]
		if c.bed > f.PhysicalBeds {
			return fmt.Errorf("facility %s: %d beds occupied, %d physical", f.ID, c.bed, f.PhysicalBeds)
		}
		if c.chair > f.ChairCapacity {
			return fmt.Errorf("facility %s: %d chairs occupied, %d capacity", f.ID, c.chair, f.ChairCapacity)
		}
		if c.total() > f.SurgeCapacity {
			return fmt.Errorf("facility %s: census %d exceeds surge capacity %d", f.ID, c.total(), f.SurgeCapacity)
		}
	}
	for _, enc := range e.active {
		if !legalPair(enc.Status, enc.ResourceType) {
			return fmt.Errorf("encounter %s: illegal status/resource pair %s/%s",
				enc.ShortID(), enc.Status, enc.ResourceType)
		}
	}
	return nil
}

func legalPair(s Status, r ResourceType) bool {
	switch s {
	case StatusWaiting, StatusWaitingForResults:
		return r == ResourceNone
	case StatusRoomed:
		return r == ResourceBed || r == ResourceChair
	case StatusAdmittedNoBed:
		return r == ResourceHallway
	default:
		// Terminal statuses never survive removeTerminal.
		return false
	}
}

// publishVitals builds and publishes a fresh immutable snapshot.
func (e *Engine) publishVitals() {
	censusOut := make(map[string]int)
	hallway := 0
	patients := make([]PatientView, 0, len(e.active)+len(e.recentExits))
	for _, enc := range e.active {
		if enc.Status == StatusRoomed || enc.Status == StatusAdmittedNoBed {
			censusOut[enc.FacilityID]++
		}
		if enc.Status == StatusAdmittedNoBed {
			hallway++
		}
		patients = append(patients, PatientView{
			ID:           enc.ID,
			FacilityID:   enc.FacilityID,
			AssignedCTAS: enc.AssignedCTAS,
			Status:       enc.Status,
			Stage:        string(enc.Stage),
			Disposition:  enc.Disposition,
			ResourceType: enc.ResourceType,
			TTL:          -1,
		})
	}
	for _, exit := range e.recentExits {
		patients = append(patients, PatientView{
			ID:           exit.ID,
			FacilityID:   exit.FacilityID,
			AssignedCTAS: exit.AssignedCTAS,
			Status:       exit.Status,
			Stage:        exit.Stage,
			Disposition:  exit.Disposition,
			TTL:          exit.TTL,
		})
	}

	totalCapacity := 0
	for i := range e.ref.Facilities {
		totalCapacity += e.ref.Facilities[i].Capacity
	}
	ratio := 0.0
	if totalCapacity > 0 {
		ratio = float64(len(e.active)) / float64(totalCapacity)
	}

	history := make([]HistoryPoint, len(e.history))
	copy(history, e.history)

	avgLOS := 0.0
	if len(e.losHistory) > 0 {
		sum := 0.0
		for _, los := range e.losHistory {
			sum += los
		}
		avgLOS = math.Round(sum/float64(len(e.losHistory))*10) / 10
	}

	e.vitals = &Vitals{
		Census:          censusOut,
		Processed:       e.totalProcessed,
		LWBS:            e.lwbsCount,
		SimHour:         e.simHour,
		History:         history,
		NEDOCS:          nedocsScore(ratio),
		HallwayPatients: hallway,
		AvgLOS:          avgLOS,
		Patients:        patients,
	}
}

// nedocsScore buckets the network occupancy ratio into the 1-6 stress score.
func nedocsScore(ratio float64) int {
	switch {
	case ratio < 0.2:
		return 1
	case ratio < 0.4:
		return 2
	case ratio < 0.6:
		return 3
	case ratio < 0.8:
		return 4
	case ratio < 1.0:
		return 5
	default:
		return 6
	}
}
