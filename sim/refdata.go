package sim

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RiskLevel classifies the clinical risk a rule guards against.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Staffing is the clinician headcount for one shift.
type Staffing struct {
	MDCount int `yaml:"md_count" json:"md_count"`
	RNCount int `yaml:"rn_count" json:"rn_count"`
}

// ShiftStaffing holds the three daily shifts.
// Day runs 08-16, evening 16-24, night 00-08.
type ShiftStaffing struct {
	Day     Staffing `yaml:"day_shift" json:"day_shift"`
	Evening Staffing `yaml:"evening_shift" json:"evening_shift"`
	Night   Staffing `yaml:"night_shift" json:"night_shift"`
}

// Facility is the static record for one emergency department.
type Facility struct {
	ID            string        `yaml:"id" json:"id"`
	Name          string        `yaml:"name" json:"name"`
	Lat           float64       `yaml:"lat" json:"lat"`
	Lon           float64       `yaml:"lon" json:"lon"`
	Capacity      int           `yaml:"capacity" json:"capacity"`
	Type          string        `yaml:"type" json:"type"`
	PhysicalBeds  int           `yaml:"physical_beds" json:"physical_beds"`
	SurgeCapacity int           `yaml:"surge_capacity" json:"surge_capacity"`
	ChairCapacity int           `yaml:"chair_capacity" json:"chair_capacity"`
	Staffing      ShiftStaffing `yaml:"staffing" json:"staffing"`
}

// StaffingFor returns the staffing active at the given simulated hour.
func (f *Facility) StaffingFor(hour int) Staffing {
	switch {
	case hour >= 0 && hour < 8:
		return f.Staffing.Night
	case hour >= 8 && hour < 16:
		return f.Staffing.Day
	default:
		return f.Staffing.Evening
	}
}

// ClinicalRule ties a presenting symptom to the triage level protocol requires.
type ClinicalRule struct {
	RuleID       string    `yaml:"rule_id" json:"rule_id"`
	Symptom      string    `yaml:"symptom" json:"symptom"`
	RequiredCTAS int       `yaml:"required_ctas" json:"required_ctas"`
	RiskLevel    RiskLevel `yaml:"risk_level" json:"risk_level"`
	Explanation  string    `yaml:"explanation" json:"explanation"`
}

// RefData is the immutable reference data an engine simulates against.
// The package-level defaults are loaded once at init and shared read-only.
type RefData struct {
	Facilities     []Facility     `yaml:"facilities"`
	ClinicalRules  []ClinicalRule `yaml:"clinical_rules"`
	SafetyKeywords []string       `yaml:"safety_keywords"`
}

// RuleForSymptom returns the first rule matching the symptom, or nil.
func (rd *RefData) RuleForSymptom(symptom string) *ClinicalRule {
	for i := range rd.ClinicalRules {
		if rd.ClinicalRules[i].Symptom == symptom {
			return &rd.ClinicalRules[i]
		}
	}
	return nil
}

// HasSafetyKeyword reports whether any safety keyword occurs in the notes
// (case-insensitive substring match).
func (rd *RefData) HasSafetyKeyword(notes string) bool {
	lower := strings.ToLower(notes)
	for _, kw := range rd.SafetyKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// defaultChairCapacity applies when a facility seed omits chair_capacity.
const defaultChairCapacity = 20

// seedYAML is the embedded network seed: five Toronto-area EDs, the clinical
// rule base, and the safety keyword list. There is no external config; a
// restart always reloads this constant.
const seedYAML = `
facilities:
  - id: SBK
    name: Sunnybrook Health Sciences
    lat: 43.722
    lon: -79.375
    capacity: 45
    type: Level 1 Trauma
    physical_beds: 45
    surge_capacity: 60
    staffing:
      day_shift: {md_count: 10, rn_count: 28}
      evening_shift: {md_count: 12, rn_count: 30}
      night_shift: {md_count: 4, rn_count: 15}
  - id: UHN-TGH
    name: Toronto General Hospital
    lat: 43.659
    lon: -79.390
    capacity: 50
    type: Academic/Transplant
    physical_beds: 50
    surge_capacity: 65
    staffing:
      day_shift: {md_count: 8, rn_count: 24}
      evening_shift: {md_count: 10, rn_count: 26}
      night_shift: {md_count: 3, rn_count: 12}
  - id: SMH
    name: St. Michaels Hospital
    lat: 43.653
    lon: -79.379
    capacity: 40
    type: Level 1 Trauma (Urban)
    physical_beds: 40
    surge_capacity: 55
    staffing:
      day_shift: {md_count: 9, rn_count: 25}
      evening_shift: {md_count: 11, rn_count: 28}
      night_shift: {md_count: 4, rn_count: 14}
  - id: NYGH
    name: North York General
    lat: 43.769
    lon: -79.363
    capacity: 35
    type: High Volume Community
    physical_beds: 35
    surge_capacity: 50
    staffing:
      day_shift: {md_count: 12, rn_count: 30}
      evening_shift: {md_count: 14, rn_count: 32}
      night_shift: {md_count: 5, rn_count: 16}
  - id: MSH
    name: Mount Sinai Hospital
    lat: 43.658
    lon: -79.391
    capacity: 38
    type: Academic
    physical_beds: 38
    surge_capacity: 48
    staffing:
      day_shift: {md_count: 6, rn_count: 18}
      evening_shift: {md_count: 8, rn_count: 20}
      night_shift: {md_count: 3, rn_count: 10}
clinical_rules:
  - rule_id: RULE_001
    symptom: Chest Pain
    required_ctas: 2
    risk_level: HIGH
    explanation: Potential cardiac event requires rapid assessment (CTAS 2).
  - rule_id: RULE_002
    symptom: Difficulty Breathing
    required_ctas: 1
    risk_level: CRITICAL
    explanation: Respiratory distress is a life-threatening emergency (CTAS 1).
  - rule_id: RULE_003
    symptom: Minor Laceration
    required_ctas: 4
    risk_level: LOW
    explanation: Stable laceration requires suture but not immediate resuscitation (CTAS 4).
  - rule_id: RULE_004
    symptom: Lower Abdominal Pain
    required_ctas: 3
    risk_level: MODERATE
    explanation: Abdominal pain in elderly or immunocompromised requires CTAS 2/3.
safety_keywords:
  - hospitalization
  - admit
  - ICU
`

// DefaultRefData returns the embedded network reference data.
// The returned value is shared and must be treated as read-only.
func DefaultRefData() *RefData {
	return defaultRefData
}

var defaultRefData *RefData

func init() {
	rd, err := loadRefData([]byte(seedYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded seed data is invalid: %v", err))
	}
	defaultRefData = rd
}

func loadRefData(raw []byte) (*RefData, error) {
	var rd RefData
	if err := yaml.Unmarshal(raw, &rd); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	if len(rd.Facilities) == 0 {
		return nil, fmt.Errorf("seed data contains no facilities")
	}
	for i := range rd.Facilities {
		f := &rd.Facilities[i]
		if f.ChairCapacity == 0 {
			f.ChairCapacity = defaultChairCapacity
		}
		if f.SurgeCapacity < f.PhysicalBeds {
			return nil, fmt.Errorf("facility %s: surge_capacity %d below physical_beds %d",
				f.ID, f.SurgeCapacity, f.PhysicalBeds)
		}
	}
	for _, r := range rd.ClinicalRules {
		if r.RequiredCTAS < 1 || r.RequiredCTAS > 5 {
			return nil, fmt.Errorf("rule %s: required_ctas %d outside 1..5", r.RuleID, r.RequiredCTAS)
		}
	}
	return &rd, nil
}
