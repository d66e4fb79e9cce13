package surgery

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence gateway for surgical cases. GetByID and
// the list methods return cases with consents and medications loaded.
type Repository interface {
	Create(ctx context.Context, sc *SurgicalCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*SurgicalCase, error)
	List(ctx context.Context, limit, offset int) ([]*SurgicalCase, int, error)
	ListByAnimal(ctx context.Context, animalID uuid.UUID, limit, offset int) ([]*SurgicalCase, int, error)

	// Update writes the mutable case fields guarded by the version the
	// caller read. It returns ErrConflict when the stored version has
	// moved on, and bumps sc.VersionID on success.
	Update(ctx context.Context, sc *SurgicalCase) error

	// AddConsent and AddMedication append evidence rows. Neither is ever
	// updated or deleted.
	AddConsent(ctx context.Context, rec *ConsentRecord) error
	AddMedication(ctx context.Context, use *MedicationUse) error
}
