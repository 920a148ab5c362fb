package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"meddispense/m/domain"
)

type stubDispenser struct {
	calls    [][]domain.RequestItem
	messages []string
	err      error
}

func (s *stubDispenser) Dispense(_ context.Context, items []domain.RequestItem) ([]string, error) {
	s.calls = append(s.calls, items)
	return s.messages, s.err
}

type stubCatalog struct {
	meds []domain.Medication
	err  error
}

func (s stubCatalog) List(context.Context) ([]domain.Medication, error) { return s.meds, s.err }

type stubLog struct {
	limits []int
	events []domain.DispenseEvent
}

func (s *stubLog) Recent(_ context.Context, limit int) ([]domain.DispenseEvent, error) {
	s.limits = append(s.limits, limit)
	return s.events, nil
}

func newTestHandler(t *testing.T, d Dispenser, log *stubLog, opts Options) http.Handler {
	t.Helper()
	if opts.Secret == "" {
		opts.Secret = "test-secret"
	}
	location := "shelf_A"
	catalog := stubCatalog{meds: []domain.Medication{{ID: 1, Name: "Paracetamol", Dosage: "500mg", Color: "red", Location: &location}}}
	h, err := New(d, catalog, log, opts, zap.NewNop())
	require.NoError(t, err)
	return h.Router()
}

func postForm(t *testing.T, router http.Handler, form url.Values) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/dispense", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie {
			return c
		}
	}
	t.Fatal("no flash cookie set")
	return nil
}

func getIndex(t *testing.T, router http.Handler, cookie *http.Cookie) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestDispenseFlashesMessagesAndRedirects(t *testing.T) {
	d := &stubDispenser{messages: []string{
		"Paracetamol 500mg dispensed at 2026-10-18 14:05:09. successfully.",
		"No Paracetamol 500mg container found.",
	}}
	router := newTestHandler(t, d, &stubLog{}, Options{})

	cookie := postForm(t, router, url.Values{
		"medication_name_0": {"Paracetamol"},
		"dosage_0":          {"500mg"},
		"quantity_0":        {"2"},
	})
	require.Len(t, d.calls, 1)
	assert.Equal(t, []domain.RequestItem{{MedicationName: "Paracetamol", Dosage: "500mg", Quantity: 2}}, d.calls[0])

	body := getIndex(t, router, cookie)
	assert.Contains(t, body, "Paracetamol 500mg dispensed at 2026-10-18 14:05:09. successfully.")
	assert.Contains(t, body, "No Paracetamol 500mg container found.")
	assert.Contains(t, body, `<option value="Paracetamol">`)

	// Messages are shown once.
	assert.NotContains(t, getIndex(t, router, nil), "container found")
}

func TestDispenseRejectsMalformedQuantity(t *testing.T) {
	d := &stubDispenser{}
	router := newTestHandler(t, d, &stubLog{}, Options{})

	cookie := postForm(t, router, url.Values{
		"medication_name_0": {"Paracetamol"},
		"dosage_0":          {"500mg"},
		"quantity_0":        {"lots"},
	})
	assert.Empty(t, d.calls)
	assert.Contains(t, getIndex(t, router, cookie), "Invalid quantity")
}

func TestDispenseFatalErrorIsOneMessage(t *testing.T) {
	d := &stubDispenser{err: errors.New("robot 10.10.10.10:40001: connect: connection refused")}
	router := newTestHandler(t, d, &stubLog{}, Options{})

	cookie := postForm(t, router, url.Values{
		"medication_name_0": {"Paracetamol"}, "dosage_0": {"500mg"}, "quantity_0": {"1"},
		"medication_name_1": {"Ibuprofen"}, "dosage_1": {"200mg"}, "quantity_1": {"1"},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	messages := newFlashStore("test-secret").read(req)
	assert.Equal(t, []string{"Dispensing aborted: robot 10.10.10.10:40001: connect: connection refused"}, messages)
}

func TestHealth(t *testing.T) {
	router := newTestHandler(t, &stubDispenser{}, &stubLog{}, Options{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestOperatorAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	router := newTestHandler(t, &stubDispenser{}, &stubLog{}, Options{OperatorUser: "operator", OperatorPasswordHash: string(hash)})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("operator", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("operator", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListMedications(t *testing.T) {
	router := newTestHandler(t, &stubDispenser{}, &stubLog{}, Options{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/medications", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var meds []domain.Medication
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meds))
	require.Len(t, meds, 1)
	assert.Equal(t, "red", meds[0].Color)
}

func TestListDispensesLimit(t *testing.T) {
	log := &stubLog{events: []domain.DispenseEvent{{
		ID: 3, MedicationName: "Ibuprofen", Dosage: "200mg",
		DispensedAt: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}}}
	router := newTestHandler(t, &stubDispenser{}, log, Options{})

	for _, target := range []string{"/api/dispensing-log", "/api/dispensing-log?limit=5", "/api/dispensing-log?limit=100000"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
	}
	assert.Equal(t, []int{defaultLogLimit, 5, maxLogLimit}, log.limits)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dispensing-log?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dispensing-log", nil))
	assert.Contains(t, rec.Body.String(), `"medication_name":"Ibuprofen"`)
	assert.Contains(t, rec.Body.String(), `"dispense_timestamp":"2026-10-18T12:00:00Z"`)
}
