package consent

import (
	"bytes"
	"errors"
	"image/png"
	"testing"
)

func scribble(p *Pad) {
	p.AddStroke(Stroke{{X: 10, Y: 20}, {X: 60, Y: 45}, {X: 120, Y: 30}})
}

func TestPad_HasSignature(t *testing.T) {
	p := NewPad(0, 0)
	if p.HasSignature() {
		t.Error("new pad reports a signature")
	}

	scribble(p)
	if !p.HasSignature() {
		t.Error("pad with strokes reports no signature")
	}

	p.Clear()
	if p.HasSignature() {
		t.Error("cleared pad still reports a signature")
	}
}

func TestPad_AddStroke_IgnoresEmpty(t *testing.T) {
	p := NewPad(0, 0)
	p.AddStroke(Stroke{})
	if p.HasSignature() {
		t.Error("empty stroke counted as signature")
	}
}

func TestPad_EncodePNG(t *testing.T) {
	p := NewPad(200, 80)
	scribble(p)

	data, err := p.EncodePNG()
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a decodable PNG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 200 || bounds.Dy() != 80 {
		t.Errorf("image size = %dx%d, want 200x80", bounds.Dx(), bounds.Dy())
	}
}

func TestPad_Render_InkOnCanvas(t *testing.T) {
	p := NewPad(100, 50)
	p.AddStroke(Stroke{{X: 5, Y: 5}, {X: 40, Y: 5}})

	img := p.Render()
	r, g, b, _ := img.At(20, 5).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Error("expected ink along the stroke line")
	}
	r, g, b, _ = img.At(20, 40).RGBA()
	if r == 0 && g == 0 && b == 0 {
		t.Error("expected blank canvas away from the stroke")
	}
}

func TestPad_Render_ClipsOutOfBounds(t *testing.T) {
	p := NewPad(50, 50)
	p.AddStroke(Stroke{{X: -10, Y: 25}, {X: 80, Y: 25}})
	// Must not panic.
	p.Render()
}

func TestPad_Sign(t *testing.T) {
	p := NewPad(0, 0)
	scribble(p)

	rec, err := p.Sign(FormAnesthesia, "Jane Doe", "owner", nil)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if rec.FormType != FormAnesthesia {
		t.Errorf("FormType = %q", rec.FormType)
	}
	if rec.SignerName != "Jane Doe" {
		t.Errorf("SignerName = %q", rec.SignerName)
	}
	if rec.SignedAt.IsZero() {
		t.Error("SignedAt not set")
	}
	if len(rec.SignatureImage) == 0 {
		t.Error("SignatureImage empty")
	}
	// PNG magic bytes.
	if !bytes.HasPrefix(rec.SignatureImage, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("SignatureImage is not PNG encoded")
	}
}

func TestPad_Sign_TrimsSignerName(t *testing.T) {
	p := NewPad(0, 0)
	scribble(p)
	rec, err := p.Sign(FormSurgery, "  Jane Doe  ", "owner", nil)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if rec.SignerName != "Jane Doe" {
		t.Errorf("SignerName = %q, want trimmed", rec.SignerName)
	}
}

func TestPad_Sign_Validation(t *testing.T) {
	cases := []struct {
		name     string
		formType string
		signer   string
		draw     bool
	}{
		{"empty signer", FormAnesthesia, "", true},
		{"whitespace signer", FormAnesthesia, "   ", true},
		{"no strokes", FormAnesthesia, "Jane Doe", false},
		{"unknown form", "euthanasia", "Jane Doe", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPad(0, 0)
			if tc.draw {
				scribble(p)
			}
			_, err := p.Sign(tc.formType, tc.signer, "owner", nil)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestPad_Sign_ResignCreatesDistinctRecord(t *testing.T) {
	p := NewPad(0, 0)
	scribble(p)

	first, err := p.Sign(FormSurgery, "Jane Doe", "owner", nil)
	if err != nil {
		t.Fatalf("first Sign: %v", err)
	}
	second, err := p.Sign(FormSurgery, "John Roe", "owner", nil)
	if err != nil {
		t.Fatalf("second Sign: %v", err)
	}

	if first.ID == second.ID {
		t.Error("re-sign reused the record id")
	}
	if first.SignerName != "Jane Doe" {
		t.Error("first record mutated by re-sign")
	}
}

func TestValidFormType(t *testing.T) {
	for _, ft := range []string{FormAnesthesia, FormSurgery, FormTreatment, FormGeneral} {
		if !ValidFormType(ft) {
			t.Errorf("ValidFormType(%q) = false", ft)
		}
	}
	if ValidFormType("grooming") {
		t.Error("ValidFormType accepted unknown type")
	}
}
