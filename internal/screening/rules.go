package screening

const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// Rule types.
const (
	TypeSymptom     = "symptom"
	TypeHistory     = "history"
	TypeMedication  = "medication"
	TypeInteraction = "interaction"
	TypeLifestyle   = "lifestyle"
	TypeVitals      = "vitals"
)

type Rule struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"` // symptom|history|medication|interaction|lifestyle
	Severity string    `json:"severity"`
	Label    string    `json:"label"`
	Match    RuleMatch `json:"match"`
	Note     string    `json:"note"`
}

type RuleMatch struct {
	Keywords   []string `json:"keywords,omitempty"`
	DrugClass  string   `json:"drugClass,omitempty"`
	DrugClassA string   `json:"drugClassA,omitempty"`
	DrugClassB string   `json:"drugClassB,omitempty"`
}

var (
	drugClasses = map[string][]string{
		"pde5i":            {"sildenafil", "tadalafil", "vardenafil", "avanafil", "viagra", "cialis"},
		"nitrates":         {"nitroglycerin", "isosorbide", "nitro patch"},
		"alphaBlockers":    {"tamsulosin", "doxazosin", "terazosin", "alfuzosin"},
		"cyp3a4Inhibitors": {"ketoconazole", "itraconazole", "ritonavir", "cobicistat", "clarithromycin"},
		"anticoagulants":   {"warfarin", "coumadin", "apixaban", "eliquis", "rivaroxaban", "xarelto", "dabigatran", "heparin", "enoxaparin"},
		"opioids":          {"oxycodone", "hydrocodone", "morphine", "fentanyl", "tramadol"},
		"benzodiazepines":  {"diazepam", "alprazolam", "lorazepam", "clonazepam", "xanax", "valium"},
	}

	ruleDB = []Rule{
		{ID: "chest-pain", Type: TypeSymptom, Severity: SeverityHigh, Label: "Chest pain",
			Match: RuleMatch{Keywords: []string{"chest pain", "chest tightness", "chest pressure", "crushing chest"}},
			Note:  "Possible cardiac event; assess immediately."},
		{ID: "dyspnea", Type: TypeSymptom, Severity: SeverityHigh, Label: "Difficulty breathing",
			Match: RuleMatch{Keywords: []string{"difficulty breathing", "shortness of breath", "short of breath", "can't breathe", "cannot breathe", "trouble breathing"}},
			Note:  "Respiratory compromise; evaluate airway and oxygenation."},
		{ID: "suicidal", Type: TypeSymptom, Severity: SeverityHigh, Label: "Suicidal thoughts",
			Match: RuleMatch{Keywords: []string{"suicid", "kill myself", "self-harm", "self harm", "end my life"}},
			Note:  "Risk of self-harm; arrange urgent mental health assessment."},
		{ID: "stroke-signs", Type: TypeSymptom, Severity: SeverityHigh, Label: "Stroke signs",
			Match: RuleMatch{Keywords: []string{"slurred speech", "facial droop", "face drooping", "numbness on one side", "weakness on one side"}},
			Note:  "Possible stroke; time-critical evaluation required."},
		{ID: "bleeding", Type: TypeSymptom, Severity: SeverityHigh, Label: "Significant bleeding",
			Match: RuleMatch{Keywords: []string{"coughing blood", "coughing up blood", "vomiting blood", "severe bleeding", "blood in stool"}},
			Note:  "Possible haemorrhage; assess haemodynamic stability."},
		{ID: "nitrates+pde5i", Type: TypeInteraction, Severity: SeverityHigh, Label: "Nitrates + PDE5i",
			Match: RuleMatch{DrugClassA: "nitrates", DrugClassB: "pde5i"},
			Note:  "Risk of profound hypotension; avoid co-administration."},
		{ID: "alpha+pde5i", Type: TypeInteraction, Severity: SeverityMedium, Label: "Alpha-blocker + PDE5i",
			Match: RuleMatch{DrugClassA: "alphaBlockers", DrugClassB: "pde5i"},
			Note:  "Additive hypotension; separate dosing and start low."},
		{ID: "cyp3a4+pde5i", Type: TypeInteraction, Severity: SeverityMedium, Label: "Strong CYP3A4 inhibitor + PDE5i",
			Match: RuleMatch{DrugClassA: "cyp3a4Inhibitors", DrugClassB: "pde5i"},
			Note:  "Higher PDE5i levels; use lowest dose and monitor."},
		{ID: "opioid+benzo", Type: TypeInteraction, Severity: SeverityHigh, Label: "Opioid + benzodiazepine",
			Match: RuleMatch{DrugClassA: "opioids", DrugClassB: "benzodiazepines"},
			Note:  "Additive respiratory depression; review necessity of both."},
		{ID: "anticoagulant", Type: TypeMedication, Severity: SeverityMedium, Label: "Anticoagulant therapy",
			Match: RuleMatch{DrugClass: "anticoagulants"},
			Note:  "Bleeding risk; check before procedures and new prescriptions."},
		{ID: "anaphylaxis", Type: TypeHistory, Severity: SeverityMedium, Label: "Severe allergy",
			Match: RuleMatch{Keywords: []string{"anaphyla", "epipen", "epi-pen", "severe allergy", "throat swelling"}},
			Note:  "History of severe reaction; confirm allergen before prescribing."},
		{ID: "pregnancy", Type: TypeHistory, Severity: SeverityMedium, Label: "Pregnancy",
			Match: RuleMatch{Keywords: []string{"pregnan"}},
			Note:  "Check medication safety in pregnancy."},
		{ID: "high-fever", Type: TypeSymptom, Severity: SeverityMedium, Label: "High fever",
			Match: RuleMatch{Keywords: []string{"high fever", "fever of 39", "fever of 40", "fever of 103", "fever of 104"}},
			Note:  "Possible systemic infection; check vitals."},
		{ID: "smoking", Type: TypeLifestyle, Severity: SeverityLow, Label: "Smoking",
			Match: RuleMatch{Keywords: []string{"smok", "cigarette", "vape", "vaping", "tobacco"}},
			Note:  "Counsel cessation; monitor CV risk."},
		{ID: "heavy-alcohol", Type: TypeLifestyle, Severity: SeverityLow, Label: "Heavy alcohol use",
			Match: RuleMatch{Keywords: []string{"heavy drink", "heavy alcohol", "binge", "alcoholism", "alcohol abuse"}},
			Note:  "Screen for dependence; review sedating medications."},
	}

	severityWeight = map[string]int{
		SeverityHigh:   40,
		SeverityMedium: 20,
		SeverityLow:    10,
	}
)

// Rules returns a copy of the built-in rule set.
func Rules() []Rule {
	out := make([]Rule, len(ruleDB))
	copy(out, ruleDB)
	return out
}
