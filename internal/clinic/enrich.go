package clinic

import (
	"context"
	"sync"

	"github.com/wolfman30/clinic-gateway/internal/ids"
)

// Enrich attaches patient display data to appointments that lack it. The
// input slice is not modified; the result has the same length and order.
// Appointments whose patient cannot be resolved are returned as received.
func (s *Service) Enrich(ctx context.Context, appts []Appointment) []Appointment {
	out := make([]Appointment, len(appts))
	copy(out, appts)

	var wg sync.WaitGroup
	for i := range out {
		if out[i].HasPatientName() {
			continue
		}
		patientID, ok := out[i].CanonicalPatientID()
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, patientID string) {
			defer wg.Done()
			ref, err := s.patients.Get(ctx, patientID)
			if err != nil {
				return
			}
			out[i].PatientID = ids.Raw(patientID)
			out[i].Patient = &PatientRef{ID: patientID, Name: ref.Name}
		}(i, patientID)
	}
	wg.Wait()
	return out
}
