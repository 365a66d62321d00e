package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRefData_Seeds(t *testing.T) {
	rd := DefaultRefData()
	require.Len(t, rd.Facilities, 5)
	require.Len(t, rd.ClinicalRules, 4)
	assert.Equal(t, []string{"hospitalization", "admit", "ICU"}, rd.SafetyKeywords)

	byID := make(map[string]Facility)
	for _, f := range rd.Facilities {
		byID[f.ID] = f
	}
	sbk, ok := byID["SBK"]
	require.True(t, ok)
	assert.Equal(t, 45, sbk.PhysicalBeds)
	assert.Equal(t, 60, sbk.SurgeCapacity)
	assert.Equal(t, 12, sbk.Staffing.Evening.MDCount)

	// chair_capacity is absent from the seeds; the default applies.
	for _, f := range rd.Facilities {
		assert.Equal(t, defaultChairCapacity, f.ChairCapacity, "facility %s", f.ID)
	}
}

func TestFacility_StaffingFor_ShiftBands(t *testing.T) {
	f := Facility{Staffing: ShiftStaffing{
		Day:     Staffing{MDCount: 1},
		Evening: Staffing{MDCount: 2},
		Night:   Staffing{MDCount: 3},
	}}

	tests := []struct {
		hour   int
		wantMD int
	}{
		{0, 3}, {7, 3},
		{8, 1}, {15, 1},
		{16, 2}, {23, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantMD, f.StaffingFor(tt.hour).MDCount, "hour %d", tt.hour)
	}
}

func TestRefData_RuleForSymptom(t *testing.T) {
	rd := DefaultRefData()

	rule := rd.RuleForSymptom("Chest Pain")
	require.NotNil(t, rule)
	assert.Equal(t, "RULE_001", rule.RuleID)
	assert.Equal(t, 2, rule.RequiredCTAS)
	assert.Equal(t, RiskHigh, rule.RiskLevel)

	assert.Nil(t, rd.RuleForSymptom("Sprained Ankle"))
}

func TestRefData_HasSafetyKeyword(t *testing.T) {
	rd := DefaultRefData()

	assert.True(t, rd.HasSafetyKeyword("worried about ICU stay"))
	assert.True(t, rd.HasSafetyKeyword("slightly concerned about Hospitalization."))
	assert.True(t, rd.HasSafetyKeyword("please ADMIT me"))
	assert.False(t, rd.HasSafetyKeyword("Patient presents with Chest Pain."))
}

func TestLoadRefData_Validation(t *testing.T) {
	t.Run("rejects surge below beds", func(t *testing.T) {
		_, err := loadRefData([]byte(`
facilities:
  - id: X
    physical_beds: 10
    surge_capacity: 5
`))
		require.Error(t, err)
	})

	t.Run("rejects CTAS outside 1..5", func(t *testing.T) {
		_, err := loadRefData([]byte(`
facilities:
  - id: X
    physical_beds: 1
    surge_capacity: 2
clinical_rules:
  - rule_id: R
    symptom: S
    required_ctas: 6
`))
		require.Error(t, err)
	})

	t.Run("rejects empty facility list", func(t *testing.T) {
		_, err := loadRefData([]byte(`clinical_rules: []`))
		require.Error(t, err)
	})
}
