package clinic

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-gateway/internal/backend"
)

type call struct {
	method  string
	path    string
	query   url.Values
	payload any
}

type response struct {
	body string
	err  error
}

// fakeAPI answers by "METHOD path". Unknown routes are routing mismatches.
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []call
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{responses: map[string]response{}}
}

func (f *fakeAPI) on(method, path, body string) *fakeAPI {
	f.responses[method+" "+path] = response{body: body}
	return f
}

func (f *fakeAPI) fail(method, path string, err error) *fakeAPI {
	f.responses[method+" "+path] = response{err: err}
	return f
}

func (f *fakeAPI) Do(_ context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, path: path, query: query, payload: payload})
	res, ok := f.responses[method+" "+path]
	if !ok {
		return nil, &backend.Error{Kind: backend.KindRoutingMismatch, Status: http.StatusNotFound, Method: method, Path: path}
	}
	if res.err != nil {
		return nil, res.err
	}
	return []byte(res.body), nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) called(method, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.method == method && c.path == path {
			return true
		}
	}
	return false
}

func (f *fakeAPI) lastPayload() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1].payload
}

func transportErr(path string) error {
	return &backend.Error{Kind: backend.KindTransport, Status: http.StatusBadGateway, Method: http.MethodGet, Path: path, Err: fmt.Errorf("connection reset")}
}

type stubLookup struct {
	mu       sync.Mutex
	patients map[string]PatientRef
	err      error
	calls    []string
}

func (s *stubLookup) Get(_ context.Context, id string) (PatientRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	if s.err != nil {
		return PatientRef{}, s.err
	}
	ref, ok := s.patients[id]
	if !ok {
		return PatientRef{}, ErrPatientNotFound
	}
	return ref, nil
}

func newTestService(t *testing.T, api backend.Requester, lookup PatientLookup) *Service {
	t.Helper()
	if lookup == nil {
		lookup = &stubLookup{}
	}
	svc, err := NewService(Config{API: api, Patients: lookup})
	require.NoError(t, err)
	return svc
}
