package appointments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-gateway/internal/clinic"
)

var (
	ErrNoChanges      = errors.New("appointments: no fields to change")
	ErrInvalidFields  = errors.New("appointments: invalid fields")
	ErrReasonRequired = errors.New("appointments: a reason is required to request a change")
)

// Session types the backend accepts.
const (
	TypeOnline   = "online"
	TypeInPerson = "in_person"
)

// Fields are the mutable appointment attributes. Zero values are not sent.
type Fields struct {
	Date           *time.Time    `json:"date,omitempty"`
	Status         clinic.Status `json:"status,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	Type           string        `json:"type,omitempty"`
	ProfessionalID string        `json:"psychologistId,omitempty"`
	Duration       *int          `json:"duration,omitempty"`
}

// Empty reports whether no field is set.
func (f Fields) Empty() bool {
	return f.Date == nil && f.Status == "" && f.Notes == "" && f.Type == "" && f.ProfessionalID == "" && f.Duration == nil
}

// Validate checks the set fields against what the backend accepts.
func (f Fields) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidFields, f.Status)
	}
	if f.Type != "" && f.Type != TypeOnline && f.Type != TypeInPerson {
		return fmt.Errorf("%w: type must be %s or %s", ErrInvalidFields, TypeOnline, TypeInPerson)
	}
	if f.Duration != nil && *f.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidFields)
	}
	return nil
}

// ChangeRequest asks the professional to apply Fields on the caller's
// behalf. Used when direct edits are forbidden.
type ChangeRequest struct {
	Fields
	Reason string `json:"reason"`
}

func (r ChangeRequest) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return ErrReasonRequired
	}
	return r.Fields.Validate()
}
