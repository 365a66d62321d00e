package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// RuleSafetyContradiction fires when a safety keyword appears in the
	// notes of an encounter triaged as not serious.
	RuleSafetyContradiction = "R-SAFETY-01"

	// RuleRespiratoryOutbreak fires when more than outbreakThreshold
	// respiratory presentations arrive inside the outbreak window.
	RuleRespiratoryOutbreak = "R-BIO-01"
)

const (
	outbreakSymptom = "Difficulty Breathing"

	// outbreakWindowTicks is 60 simulated minutes. The window is keyed by
	// tick, not wallclock, so it survives pause and fast-forward.
	outbreakWindowTicks = 60

	outbreakThreshold = 3
)

// Auditor evaluates each arrival against the clinical rule base and keeps a
// sliding window of respiratory presentations. One auditor belongs to one
// engine and is not safe for concurrent use.
type Auditor struct {
	ref *RefData

	// respiratory holds arrival ticks of recent outbreakSymptom
	// presentations, oldest first.
	respiratory []int64
}

// NewAuditor creates an auditor over the given reference data.
func NewAuditor(ref *RefData) *Auditor {
	return &Auditor{ref: ref}
}

// Audit checks one arrival and returns at most one alert, first match wins:
// CTAS mismatch, then safety-keyword contradiction, then respiratory
// outbreak. now is the engine's current tick.
func (a *Auditor) Audit(e *Encounter, now int64) *Alert {
	if rule := a.ref.RuleForSymptom(e.Symptom); rule != nil && e.AssignedCTAS != rule.RequiredCTAS {
		return a.newAlert(e, rule.RuleID, rule.RiskLevel,
			fmt.Sprintf("Patient P-%s (%s) assigned CTAS %d. Protocol requires CTAS %d.",
				e.ShortID(), e.Symptom, e.AssignedCTAS, rule.RequiredCTAS))
	}

	if a.ref.HasSafetyKeyword(e.Notes) && !e.IsSerious {
		return a.newAlert(e, RuleSafetyContradiction, RiskCritical,
			"Safety keyword detected in notes but is_serious is False.")
	}

	if e.Symptom == outbreakSymptom {
		a.respiratory = append(a.respiratory, now)
	}
	a.pruneWindow(now)
	if len(a.respiratory) > outbreakThreshold {
		return a.newAlert(e, RuleRespiratoryOutbreak, RiskCritical,
			fmt.Sprintf("BIO_SIGNAL_DETECTED: >%d Respiratory Distress cases in <%d mins.",
				outbreakThreshold, outbreakWindowTicks))
	}

	return nil
}

// pruneWindow drops window entries older than outbreakWindowTicks.
func (a *Auditor) pruneWindow(now int64) {
	cutoff := now - outbreakWindowTicks
	i := 0
	for i < len(a.respiratory) && a.respiratory[i] <= cutoff {
		i++
	}
	a.respiratory = a.respiratory[i:]
}

func (a *Auditor) newAlert(e *Encounter, ruleID string, severity RiskLevel, explanation string) *Alert {
	return &Alert{
		ID:          uuid.NewString(),
		EncounterID: e.ID,
		RuleID:      ruleID,
		Severity:    severity,
		Timestamp:   time.Now(),
		Explanation: explanation,
	}
}
