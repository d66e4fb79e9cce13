// Package consent turns freehand stroke input into immutable signed
// consent records with a rasterized signature image.
package consent

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Form types a signer can attest to.
const (
	FormAnesthesia = "anesthesia"
	FormSurgery    = "surgery"
	FormTreatment  = "treatment"
	FormGeneral    = "general"
)

var validFormTypes = map[string]bool{
	FormAnesthesia: true,
	FormSurgery:    true,
	FormTreatment:  true,
	FormGeneral:    true,
}

// ValidFormType reports whether t names a known consent form.
func ValidFormType(t string) bool {
	return validFormTypes[t]
}

// ValidationError reports caller input that fails a local invariant. The
// operation never reaches storage when one is returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Point is a single 2D coordinate in pad pixel space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Stroke is an ordered run of points drawn between pointer-down and
// pointer-up.
type Stroke []Point

// Record is the immutable signed artifact for one form type. Fields are
// set once at Sign time and never change; re-signing a form produces a
// new Record rather than altering an existing one.
type Record struct {
	ID             uuid.UUID `db:"id" json:"id"`
	FormType       string    `db:"form_type" json:"form_type"`
	SignerName     string    `db:"signer_name" json:"signer_name"`
	SignerRelation string    `db:"signer_relation" json:"signer_relation"`
	WitnessName    *string   `db:"witness_name" json:"witness_name,omitempty"`
	SignatureImage []byte    `db:"signature_image" json:"signature_image"`
	SignedAt       time.Time `db:"signed_at" json:"signed_at"`
}

const (
	DefaultWidth  = 400
	DefaultHeight = 160
)

// Pad accumulates signature strokes in a fixed-size raster space. It is a
// capture surface only; it knows nothing about cases or form state.
type Pad struct {
	width   int
	height  int
	strokes []Stroke
}

// NewPad creates a capture surface with the given raster dimensions.
// Non-positive dimensions fall back to the defaults.
func NewPad(width, height int) *Pad {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Pad{width: width, height: height}
}

// AddStroke appends a drawn stroke. Strokes with no points are ignored.
func (p *Pad) AddStroke(s Stroke) {
	if len(s) == 0 {
		return
	}
	cp := make(Stroke, len(s))
	copy(cp, s)
	p.strokes = append(p.strokes, cp)
}

// HasSignature reports whether at least one stroke has been drawn.
func (p *Pad) HasSignature() bool {
	return len(p.strokes) > 0
}

// Clear resets the pad to its empty state.
func (p *Pad) Clear() {
	p.strokes = nil
}

// Render rasterizes the accumulated strokes onto a white canvas.
func (p *Pad) Render() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			img.SetRGBA(x, y, white)
		}
	}
	ink := color.RGBA{A: 255}
	for _, s := range p.strokes {
		if len(s) == 1 {
			p.setPixel(img, s[0].X, s[0].Y, ink)
			continue
		}
		for i := 1; i < len(s); i++ {
			p.drawLine(img, s[i-1], s[i], ink)
		}
	}
	return img
}

// EncodePNG renders the strokes and encodes the raster as PNG.
func (p *Pad) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Render()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sign validates the signer identity, encodes the signature raster and
// returns an immutable Record stamped with the current time. The pad
// itself is left untouched so the caller can decide when to Clear.
func (p *Pad) Sign(formType, signerName, signerRelation string, witnessName *string) (*Record, error) {
	if !ValidFormType(formType) {
		return nil, &ValidationError{Field: "form_type", Msg: fmt.Sprintf("unknown form type %q", formType)}
	}
	if strings.TrimSpace(signerName) == "" {
		return nil, &ValidationError{Field: "signer_name", Msg: "is required"}
	}
	if !p.HasSignature() {
		return nil, &ValidationError{Field: "signature", Msg: "no strokes drawn"}
	}

	img, err := p.EncodePNG()
	if err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}
	return &Record{
		ID:             uuid.New(),
		FormType:       formType,
		SignerName:     strings.TrimSpace(signerName),
		SignerRelation: signerRelation,
		WitnessName:    witnessName,
		SignatureImage: img,
		SignedAt:       time.Now().UTC(),
	}, nil
}

func (p *Pad) setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return
	}
	img.SetRGBA(x, y, c)
}

// drawLine plots a Bresenham line between two points.
func (p *Pad) drawLine(img *image.RGBA, a, b Point, c color.RGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx := 1
	if a.X > b.X {
		sx = -1
	}
	sy := 1
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy

	x, y := a.X, a.Y
	for {
		p.setPixel(img, x, y, c)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
