package clinic

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-gateway/internal/backend"
)

func TestFetchPatient(t *testing.T) {
	tests := []struct {
		name string
		body string
		want PatientRef
	}{
		{"enveloped", `{"success":true,"data":{"_id":"abc","name":"Jane Doe","email":"jane@example.com"}}`, PatientRef{ID: "abc", Name: "Jane Doe", Email: "jane@example.com"}},
		{"bare record", `{"id":"abc","name":"Jane Doe"}`, PatientRef{ID: "abc", Name: "Jane Doe"}},
		{"missing id uses requested", `{"data":{"name":"Jane Doe"}}`, PatientRef{ID: "abc", Name: "Jane Doe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI().on(http.MethodGet, "/patients/abc", tt.body)
			got, err := NewPatientFetcher(api).FetchPatient(context.Background(), "abc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchPatientWithoutRecord(t *testing.T) {
	api := newFakeAPI().on(http.MethodGet, "/patients/abc", `{"success":false}`)
	_, err := NewPatientFetcher(api).FetchPatient(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestFetchPatientRequiresID(t *testing.T) {
	api := newFakeAPI()
	_, err := NewPatientFetcher(api).FetchPatient(context.Background(), "")
	assert.ErrorIs(t, err, ErrPatientIDRequired)
	assert.Zero(t, api.callCount())
}

func TestServicePatientUsesLookup(t *testing.T) {
	lookup := &stubLookup{patients: map[string]PatientRef{"abc": {ID: "abc", Name: "Jane Doe"}}}
	svc := newTestService(t, newFakeAPI(), lookup)

	ref, err := svc.Patient(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", ref.Name)

	_, err = svc.Patient(context.Background(), "")
	assert.ErrorIs(t, err, ErrPatientIDRequired)
	assert.Equal(t, []string{"abc"}, lookup.calls)
}

func TestServicePatientErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
		wantKind     backend.Kind
	}{
		{"missing record", ErrPatientNotFound, true, ""},
		{"route 404", &backend.Error{Kind: backend.KindRoutingMismatch, Status: http.StatusNotFound}, true, backend.KindRoutingMismatch},
		{"marked missing", &backend.Error{Kind: backend.KindNotFound, Status: http.StatusNotFound}, true, backend.KindNotFound},
		{"forbidden", &backend.Error{Kind: backend.KindForbidden, Status: http.StatusForbidden}, false, backend.KindForbidden},
		{"transport", transportErr("/patients/abc"), false, backend.KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, newFakeAPI(), &stubLookup{err: tt.err})
			_, err := svc.Patient(context.Background(), "abc")
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, errors.Is(err, ErrPatientNotFound))
			if !tt.wantNotFound {
				assert.Equal(t, tt.wantKind, backend.KindOf(err))
			}
		})
	}
}
