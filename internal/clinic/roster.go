package clinic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wolfman30/clinic-gateway/internal/envelope"
)

// Roster lists the clinic's professionals.
// GET /clinics/{clinicID}/psychologists
func (s *Service) Roster(ctx context.Context, clinicID string) ([]Professional, error) {
	clinicID, err := requireID(clinicID, ErrClinicIDRequired)
	if err != nil {
		return nil, err
	}

	data, err := s.api.Do(ctx, http.MethodGet, clinicPath(clinicID, "psychologists"), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("clinic: fetch roster: %w", err)
	}

	items, shape := envelope.Match(data, "psychologists")
	if shape == envelope.ShapeNone {
		s.logger.Warn("unrecognized roster response shape", "clinic_id", clinicID, "bytes", len(data))
	}
	roster, skipped := envelope.Decode[Professional](data, "psychologists")
	if skipped > 0 {
		s.logger.Warn("skipped undecodable roster entries", "clinic_id", clinicID, "skipped", skipped, "total", len(items))
	}
	return roster, nil
}
