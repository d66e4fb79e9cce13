package surgery

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hssvet/clinic-api/internal/domain/consent"
)

func TestChecklist_Complete_Exhaustive(t *testing.T) {
	for mask := 0; mask < 64; mask++ {
		cl := Checklist{
			PatientIDVerified:    mask&1 != 0,
			OwnerContactVerified: mask&2 != 0,
			FastingConfirmed:     mask&4 != 0,
			PreOpExamCompleted:   mask&8 != 0,
			BloodTestCompleted:   mask&16 != 0,
			XrayCompleted:        mask&32 != 0,
		}
		want := cl.PatientIDVerified && cl.OwnerContactVerified && cl.FastingConfirmed &&
			cl.PreOpExamCompleted && (cl.BloodTestCompleted || cl.XrayCompleted)
		if got := cl.Complete(); got != want {
			t.Errorf("mask %06b: Complete() = %v, want %v", mask, got, want)
		}
	}
}

func TestChecklist_MissingItems(t *testing.T) {
	cl := Checklist{}
	missing := cl.MissingItems()
	if len(missing) != 5 {
		t.Errorf("missing = %v, want 5 entries", missing)
	}

	cl = Checklist{
		PatientIDVerified:    true,
		OwnerContactVerified: true,
		FastingConfirmed:     true,
		PreOpExamCompleted:   true,
		XrayCompleted:        true,
	}
	if missing := cl.MissingItems(); len(missing) != 0 {
		t.Errorf("missing = %v, want none", missing)
	}
}

func TestSurgicalCase_LatestConsent(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sc := &SurgicalCase{
		Consents: []*ConsentRecord{
			{ID: uuid.New(), FormType: consent.FormAnesthesia, SignerName: "Jane Doe", SignedAt: base},
			{ID: uuid.New(), FormType: consent.FormAnesthesia, SignerName: "John Roe", SignedAt: base.Add(time.Hour)},
			{ID: uuid.New(), FormType: consent.FormSurgery, SignerName: "Jane Doe", SignedAt: base},
		},
	}

	latest := sc.LatestConsent(consent.FormAnesthesia)
	if latest == nil || latest.SignerName != "John Roe" {
		t.Errorf("latest anesthesia consent = %+v, want John Roe record", latest)
	}
	if sc.LatestConsent(consent.FormTreatment) != nil {
		t.Error("expected nil for unsigned form type")
	}
	// All three evidence rows retained.
	if len(sc.Consents) != 3 {
		t.Errorf("consents = %d, want 3", len(sc.Consents))
	}
}

func TestSurgicalCase_RequiredConsentsSigned(t *testing.T) {
	sc := &SurgicalCase{}
	if sc.RequiredConsentsSigned() {
		t.Error("no consents should not satisfy the requirement")
	}

	sc.Consents = append(sc.Consents, &ConsentRecord{FormType: consent.FormAnesthesia, SignedAt: time.Now()})
	if sc.RequiredConsentsSigned() {
		t.Error("anesthesia alone should not satisfy the requirement")
	}
	if got := sc.MissingConsents(); len(got) != 1 || got[0] != consent.FormSurgery {
		t.Errorf("MissingConsents = %v, want [surgery]", got)
	}

	sc.Consents = append(sc.Consents, &ConsentRecord{FormType: consent.FormSurgery, SignedAt: time.Now()})
	if !sc.RequiredConsentsSigned() {
		t.Error("both required consents signed, requirement not satisfied")
	}
}

func TestSurgicalCase_EffectiveStatus(t *testing.T) {
	complete := Checklist{
		PatientIDVerified:    true,
		OwnerContactVerified: true,
		FastingConfirmed:     true,
		PreOpExamCompleted:   true,
		BloodTestCompleted:   true,
	}
	signed := []*ConsentRecord{
		{FormType: consent.FormAnesthesia, SignedAt: time.Now()},
		{FormType: consent.FormSurgery, SignedAt: time.Now()},
	}

	cases := []struct {
		name string
		sc   SurgicalCase
		want string
	}{
		{"planned stays planned", SurgicalCase{Status: StatusPlanned, Checklist: complete, Consents: signed}, StatusPlanned},
		{"pending without consents", SurgicalCase{Status: StatusConsentsPending, Checklist: complete}, StatusConsentsPending},
		{"pending with consents is ready", SurgicalCase{Status: StatusConsentsPending, Checklist: complete, Consents: signed}, StatusReady},
		{"in progress unchanged", SurgicalCase{Status: StatusInProgress, Checklist: complete, Consents: signed}, StatusInProgress},
		{"completed unchanged", SurgicalCase{Status: StatusCompleted}, StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sc.EffectiveStatus(); got != tc.want {
				t.Errorf("EffectiveStatus() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSurgicalCase_ChecklistEditable(t *testing.T) {
	editable := map[string]bool{
		StatusPlanned:         true,
		StatusConsentsPending: true,
		StatusInProgress:      false,
		StatusCompleted:       false,
		StatusCancelled:       false,
	}
	for status, want := range editable {
		sc := SurgicalCase{Status: status}
		if got := sc.ChecklistEditable(); got != want {
			t.Errorf("ChecklistEditable() in %s = %v, want %v", status, got, want)
		}
	}
}
