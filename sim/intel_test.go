package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arrivalFor(symptom string, ctas int, serious bool, notes string) *Encounter {
	return &Encounter{
		ID:           "enc-0000-abcd",
		FacilityID:   "SBK",
		Symptom:      symptom,
		AssignedCTAS: ctas,
		IsSerious:    serious,
		Notes:        notes,
		Status:       StatusWaiting,
		ResourceType: ResourceNone,
	}
}

func TestAuditor_CorrectTriageNoAlert(t *testing.T) {
	a := NewAuditor(DefaultRefData())
	enc := arrivalFor("Minor Laceration", 4, false, "Patient presents with Minor Laceration.")
	assert.Nil(t, a.Audit(enc, 0))
}

func TestAuditor_CTASMismatch(t *testing.T) {
	a := NewAuditor(DefaultRefData())
	enc := arrivalFor("Chest Pain", 3, true, "Patient presents with Chest Pain.")

	alert := a.Audit(enc, 0)
	require.NotNil(t, alert)
	assert.Equal(t, "RULE_001", alert.RuleID)
	assert.Equal(t, RiskHigh, alert.Severity)
	assert.Equal(t, enc.ID, alert.EncounterID)
	assert.Contains(t, alert.Explanation, "abcd")
	assert.Contains(t, alert.Explanation, "Chest Pain")
	assert.Contains(t, alert.Explanation, "CTAS 3")
	assert.Contains(t, alert.Explanation, "CTAS 2")
}

func TestAuditor_SafetyKeywordContradiction(t *testing.T) {
	a := NewAuditor(DefaultRefData())
	enc := arrivalFor("Minor Laceration", 4, false,
		"Minor cut, slightly concerned about hospitalization.")

	alert := a.Audit(enc, 0)
	require.NotNil(t, alert)
	assert.Equal(t, RuleSafetyContradiction, alert.RuleID)
	assert.Equal(t, RiskCritical, alert.Severity)
}

func TestAuditor_SeriousPatientKeywordIsFine(t *testing.T) {
	a := NewAuditor(DefaultRefData())
	enc := arrivalFor("Chest Pain", 2, true, "Likely needs admit to cardiology.")
	assert.Nil(t, a.Audit(enc, 0))
}

func TestAuditor_RespiratoryOutbreak(t *testing.T) {
	a := NewAuditor(DefaultRefData())

	// Correctly triaged respiratory arrivals inside one 60-tick window.
	// The fourth trips the outbreak detector.
	for i, tick := range []int64{0, 10, 20, 30} {
		enc := arrivalFor("Difficulty Breathing", 1, true, "Patient presents with Difficulty Breathing.")
		alert := a.Audit(enc, tick)
		if i < 3 {
			assert.Nil(t, alert, "arrival %d should not alert", i)
			continue
		}
		require.NotNil(t, alert, "fourth arrival must alert")
		assert.Equal(t, RuleRespiratoryOutbreak, alert.RuleID)
		assert.Equal(t, RiskCritical, alert.Severity)
	}
}

func TestAuditor_OutbreakWindowExpires(t *testing.T) {
	a := NewAuditor(DefaultRefData())

	// Three arrivals early, one far outside the 60-tick window: the stale
	// entries are pruned, so no outbreak.
	for _, tick := range []int64{0, 5, 10} {
		enc := arrivalFor("Difficulty Breathing", 1, true, "Patient presents with Difficulty Breathing.")
		require.Nil(t, a.Audit(enc, tick))
	}
	enc := arrivalFor("Difficulty Breathing", 1, true, "Patient presents with Difficulty Breathing.")
	assert.Nil(t, a.Audit(enc, 100))
}

func TestAuditor_FirstMatchWins(t *testing.T) {
	a := NewAuditor(DefaultRefData())

	// Mis-triaged respiratory arrivals: the CTAS mismatch rule fires before
	// the outbreak rule, and the window is not fed by early-returned audits.
	for _, tick := range []int64{0, 1, 2, 3, 4} {
		enc := arrivalFor("Difficulty Breathing", 3, true, "Patient presents with Difficulty Breathing.")
		alert := a.Audit(enc, tick)
		require.NotNil(t, alert)
		assert.Equal(t, "RULE_002", alert.RuleID)
	}

	// Mismatch also outranks the safety-keyword rule.
	enc := arrivalFor("Chest Pain", 5, false, "Not serious, mentioned ICU in passing.")
	alert := a.Audit(enc, 10)
	require.NotNil(t, alert)
	assert.Equal(t, "RULE_001", alert.RuleID)
}
