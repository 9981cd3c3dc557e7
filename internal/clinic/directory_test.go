package clinic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-gateway/internal/backend"
)

func TestClinicProfile(t *testing.T) {
	api := newFakeAPI().on(http.MethodGet, "/clinics/c1",
		`{"success":true,"data":{"_id":{"$oid":"c1"},"name":"Clínica Sol","cnpj":"12.345","address":{"street":"Rua A","number":"10","neighborhood":"Centro","city":"Recife","state":"PE","zipCode":"50000"},"createdAt":"2025-01-02T10:00:00Z"}}`)
	svc := newTestService(t, api, nil)

	c, err := svc.Clinic(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "Clínica Sol", c.Name)
	assert.Equal(t, "12.345", c.TaxID)
	require.NotNil(t, c.Address)
	assert.Equal(t, "Recife", c.Address.City)
	require.NotNil(t, c.CreatedAt)
}

func TestClinicProfileWithoutRecord(t *testing.T) {
	api := newFakeAPI().on(http.MethodGet, "/clinics/c1", `{"success":false}`)
	_, err := newTestService(t, api, nil).Clinic(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrClinicNotFound)
}

func TestUpdateClinic(t *testing.T) {
	api := newFakeAPI().on(http.MethodPut, "/clinics/c1", `{"data":{"_id":"c1","name":"Clínica Lua"}}`)
	svc := newTestService(t, api, nil)

	c, err := svc.UpdateClinic(context.Background(), "c1", ClinicUpdate{Name: "Clínica Lua"})
	require.NoError(t, err)
	assert.Equal(t, "Clínica Lua", c.Name)
	assert.Equal(t, ClinicUpdate{Name: "Clínica Lua"}, api.lastPayload())
}

func TestUpdateClinicBareSuccess(t *testing.T) {
	api := newFakeAPI().on(http.MethodPut, "/clinics/c1", `{"success":true}`)
	c, err := newTestService(t, api, nil).UpdateClinic(context.Background(), "c1", ClinicUpdate{Phone: "81 9999"})
	require.NoError(t, err)
	assert.Equal(t, Clinic{ID: "c1"}, c)
}

func TestUpdateClinicRejectsEmptyUpdate(t *testing.T) {
	api := newFakeAPI()
	_, err := newTestService(t, api, nil).UpdateClinic(context.Background(), "c1", ClinicUpdate{})
	assert.ErrorIs(t, err, ErrNoClinicChanges)
	assert.Zero(t, api.callCount())
}

func TestMembershipRoutes(t *testing.T) {
	api := newFakeAPI().
		on(http.MethodPost, "/clinics/c1/psychologists/p1/link", `{"success":true}`).
		on(http.MethodPost, "/clinics/c1/psychologists/p1/unlink", `{"success":true}`).
		on(http.MethodPost, "/clinics/c1/patients/pt1/link", `{"success":true}`).
		on(http.MethodPost, "/clinics/c1/patients/pt1/unlink", `{"success":true}`)
	svc := newTestService(t, api, nil)
	ctx := context.Background()

	require.NoError(t, svc.LinkProfessional(ctx, "c1", "p1"))
	require.NoError(t, svc.UnlinkProfessional(ctx, "c1", "p1"))
	require.NoError(t, svc.LinkPatient(ctx, "c1", "pt1"))
	require.NoError(t, svc.UnlinkPatient(ctx, "c1", "pt1"))
	assert.Equal(t, 4, api.callCount())
}

func TestMembershipKeepsBackendClassification(t *testing.T) {
	api := newFakeAPI().fail(http.MethodPost, "/clinics/c1/patients/pt1/unlink",
		&backend.Error{Kind: backend.KindForbidden, Status: http.StatusForbidden})
	err := newTestService(t, api, nil).UnlinkPatient(context.Background(), "c1", "pt1")
	assert.True(t, backend.IsForbidden(err))
}

func TestMembershipRequiresIDs(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(t, api, nil)

	assert.ErrorIs(t, svc.LinkProfessional(context.Background(), "c1", " "), ErrProfessionalIDRequired)
	assert.ErrorIs(t, svc.LinkPatient(context.Background(), "", "pt1"), ErrClinicIDRequired)
	assert.Zero(t, api.callCount())
}

func TestAssignPatient(t *testing.T) {
	api := newFakeAPI().on(http.MethodPut, "/clinics/c1/patients/pt1/assign-psychologist", `{"success":true}`)
	svc := newTestService(t, api, nil)

	require.NoError(t, svc.AssignPatient(context.Background(), "c1", "pt1", "p2"))
	assert.Equal(t, map[string]string{"psychologistId": "p2"}, api.lastPayload())

	assert.ErrorIs(t, svc.AssignPatient(context.Background(), "c1", "pt1", ""), ErrProfessionalIDRequired)
}

func TestProfessionalPatients(t *testing.T) {
	api := newFakeAPI().on(http.MethodGet, "/psychologists/p1/patients",
		`{"data":[{"_id":"pt1","name":"Jane Doe"},{"_id":{"$oid":"pt2"},"name":"John Roe"}]}`)

	patients, err := newTestService(t, api, nil).ProfessionalPatients(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []PatientRef{{ID: "pt1", Name: "Jane Doe"}, {ID: "pt2", Name: "John Roe"}}, patients)
}

func serveBody(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerDirectoryRoutes(t *testing.T) {
	api := newFakeAPI().
		on(http.MethodGet, "/clinics/c1", `{"data":{"_id":"c1","name":"Clínica Sol"}}`).
		on(http.MethodPut, "/clinics/c1", `{"data":{"_id":"c1","name":"Clínica Lua"}}`).
		on(http.MethodPost, "/clinics/c1/psychologists/p1/link", `{}`).
		on(http.MethodPost, "/clinics/c1/patients/pt1/unlink", `{}`).
		on(http.MethodPut, "/clinics/c1/patients/pt1/assign-psychologist", `{}`).
		on(http.MethodGet, "/psychologists/p1/patients", `[{"_id":"pt1","name":"Jane Doe"}]`)
	router := newTestRouter(t, api, nil)

	rec := serve(t, router, http.MethodGet, "/clinics/c1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Clínica Sol"`)

	rec = serveBody(t, router, http.MethodPut, "/clinics/c1", `{"name":"Clínica Lua"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Clínica Lua"`)

	rec = serve(t, router, http.MethodPost, "/clinics/c1/professionals/p1/link")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"linked"}`, rec.Body.String())

	rec = serve(t, router, http.MethodPost, "/clinics/c1/patients/pt1/unlink")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"unlinked"}`, rec.Body.String())

	rec = serveBody(t, router, http.MethodPut, "/clinics/c1/patients/pt1/professional", `{"psychologistId":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"assigned"}`, rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/professionals/p1/patients")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Patients []PatientRef `json:"patients"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []PatientRef{{ID: "pt1", Name: "Jane Doe"}}, body.Patients)
}

func TestHandlerDirectoryValidation(t *testing.T) {
	api := newFakeAPI()
	router := newTestRouter(t, api, nil)

	rec := serveBody(t, router, http.MethodPut, "/clinics/c1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serveBody(t, router, http.MethodPut, "/clinics/c1/patients/pt1/professional", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serveBody(t, router, http.MethodPut, "/clinics/c1", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, api.callCount())
}

func TestHandlerDirectoryEscalatesForbidden(t *testing.T) {
	api := newFakeAPI().fail(http.MethodPost, "/clinics/c1/patients/pt1/unlink",
		&backend.Error{Kind: backend.KindForbidden, Status: http.StatusForbidden, Message: "only clinic admins"})
	router := newTestRouter(t, api, nil)

	rec := serve(t, router, http.MethodPost, "/clinics/c1/patients/pt1/unlink")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "only clinic admins")
}
