package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetboard/fleetboard/internal/api/handler"
	"github.com/fleetboard/fleetboard/internal/bus"
)

// fakeBusRepo is an in-memory bus.Repository for handler tests.
type fakeBusRepo struct {
	mu    sync.Mutex
	buses map[uuid.UUID]*bus.Bus
	order []uuid.UUID
}

func newFakeBusRepo() *fakeBusRepo {
	return &fakeBusRepo{buses: make(map[uuid.UUID]*bus.Bus)}
}

func (r *fakeBusRepo) Create(_ context.Context, b *bus.Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	plate := bus.NormalizePlate(b.LicensePlate)
	for _, existing := range r.buses {
		if existing.LicensePlate == plate {
			return bus.ErrDuplicatePlate
		}
	}
	b.ID = uuid.New()
	b.LicensePlate = plate
	if b.Status == "" {
		b.Status = bus.StatusParked
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	copied := *b
	r.buses[b.ID] = &copied
	r.order = append(r.order, b.ID)
	return nil
}

func (r *fakeBusRepo) GetByID(_ context.Context, id uuid.UUID) (*bus.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buses[id]
	if !ok {
		return nil, bus.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBusRepo) GetByPlate(_ context.Context, plate string) (*bus.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plate = bus.NormalizePlate(plate)
	for _, b := range r.buses {
		if b.LicensePlate == plate {
			copied := *b
			return &copied, nil
		}
	}
	return nil, bus.ErrNotFound
}

func (r *fakeBusRepo) Update(_ context.Context, id uuid.UUID, fields bus.UpdateFields) (*bus.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buses[id]
	if !ok {
		return nil, bus.ErrNotFound
	}
	if fields.UnitName != nil {
		b.UnitName = *fields.UnitName
	}
	if fields.Status != nil {
		b.Status = *fields.Status
	}
	switch {
	case fields.ClearRoute:
		b.Route = nil
	case fields.Route != nil:
		b.Route = fields.Route
	}
	switch {
	case fields.ClearDriver:
		b.Driver = nil
	case fields.Driver != nil:
		b.Driver = fields.Driver
	}
	if fields.MovingTime != nil {
		b.MovingTime = *fields.MovingTime
	}
	if fields.ParkedTime != nil {
		b.ParkedTime = *fields.ParkedTime
	}
	if fields.IsFavorite != nil {
		b.IsFavorite = *fields.IsFavorite
	}
	switch {
	case fields.ClearPosition:
		b.Position = nil
	case fields.Position != nil:
		b.Position = fields.Position
	}
	b.UpdatedAt = time.Now().UTC()
	copied := *b
	return &copied, nil
}

func (r *fakeBusRepo) Remove(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buses[id]; !ok {
		return bus.ErrNotFound
	}
	delete(r.buses, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeBusRepo) List(_ context.Context, filter bus.ListFilter) (*bus.ListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var matched []bus.Bus
	for _, id := range r.order {
		b := r.buses[id]
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.Route != nil && (b.Route == nil || *b.Route != *filter.Route) {
			continue
		}
		if filter.IsFavorite != nil && b.IsFavorite != *filter.IsFavorite {
			continue
		}
		matched = append(matched, *b)
	}

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return &bus.ListResult{
		Buses:      matched[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasMore:    page*limit < total,
	}, nil
}

// newBusRouter mounts the handler on a bare chi router so URL parameters
// resolve. Auth middleware is covered elsewhere.
func newBusRouter(repo bus.Repository) http.Handler {
	h := handler.NewBusHandler(repo)
	r := chi.NewRouter()
	r.Post("/buses", h.Create)
	r.Get("/buses", h.List)
	r.Get("/buses/{id}", h.GetByID)
	r.Patch("/buses/{id}", h.Update)
	r.Delete("/buses/{id}", h.Delete)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createBusBody() map[string]any {
	return map[string]any{
		"licensePlate": "abc-123",
		"unitName":     "Unit 1",
	}
}

// --- Create ---

func TestBusCreate_Created(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	w := doJSON(t, router, http.MethodPost, "/buses", createBusBody())

	assert.Equal(t, http.StatusCreated, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, "ABC-123", data["licensePlate"], "plate should be normalized")
	assert.Equal(t, "parked", data["status"], "status should default to parked")
	assert.NotEmpty(t, data["id"])
	assert.Nil(t, data["position"])
}

func TestBusCreate_WithPosition(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	body := createBusBody()
	body["position"] = map[string]any{"lat": -12.0464, "lng": -77.0428}
	w := doJSON(t, router, http.MethodPost, "/buses", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := envelopeData(t, w)
	pos := data["position"].(map[string]interface{})
	assert.InDelta(t, -12.0464, pos["lat"], 1e-9)
	assert.InDelta(t, -77.0428, pos["lng"], 1e-9)
}

func TestBusCreate_DuplicatePlateConflict(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/buses", createBusBody()).Code)

	body := createBusBody()
	body["licensePlate"] = "ABC-123" // same plate, already uppercase
	body["unitName"] = "Unit 2"
	w := doJSON(t, router, http.MethodPost, "/buses", body)

	assert.Equal(t, http.StatusConflict, w.Code)
	apiErr := envelopeError(t, w)
	assert.Equal(t, "CONFLICT", apiErr["code"])
}

func TestBusCreate_ValidationErrors(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	w := doJSON(t, router, http.MethodPost, "/buses", map[string]any{
		"licensePlate": "",
		"unitName":     "",
		"status":       "flying",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	apiErr := envelopeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
	assert.NotEmpty(t, apiErr["details"])
}

func TestBusCreate_PartialPositionRejected(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	body := createBusBody()
	body["position"] = map[string]any{"lat": 10.0}
	w := doJSON(t, router, http.MethodPost, "/buses", body)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// --- GetByID ---

func TestBusGetByID_Success(t *testing.T) {
	repo := newFakeBusRepo()
	router := newBusRouter(repo)

	created := doJSON(t, router, http.MethodPost, "/buses", createBusBody())
	require.Equal(t, http.StatusCreated, created.Code)
	id := envelopeData(t, created)["id"].(string)

	w := doJSON(t, router, http.MethodGet, "/buses/"+id, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, id, data["id"])
}

func TestBusGetByID_NotFound(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	w := doJSON(t, router, http.MethodGet, "/buses/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	apiErr := envelopeError(t, w)
	assert.Equal(t, "NOT_FOUND", apiErr["code"])
}

func TestBusGetByID_InvalidID(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	w := doJSON(t, router, http.MethodGet, "/buses/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := envelopeError(t, w)
	assert.Equal(t, "INVALID_ID", apiErr["code"])
}

// --- Update ---

func TestBusUpdate_Fields(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	created := doJSON(t, router, http.MethodPost, "/buses", createBusBody())
	require.Equal(t, http.StatusCreated, created.Code)
	id := envelopeData(t, created)["id"].(string)

	w := doJSON(t, router, http.MethodPatch, "/buses/"+id, map[string]any{
		"status":     "moving",
		"route":      "Line 42",
		"driver":     "Jordan",
		"isFavorite": true,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, "moving", data["status"])
	assert.Equal(t, "Line 42", data["route"])
	assert.Equal(t, "Jordan", data["driver"])
	assert.Equal(t, true, data["isFavorite"])
}

func TestBusUpdate_NullClearsNullableFields(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	body := createBusBody()
	body["route"] = "Line 7"
	body["driver"] = "Jordan"
	body["position"] = map[string]any{"lat": 1.0, "lng": 2.0}
	created := doJSON(t, router, http.MethodPost, "/buses", body)
	require.Equal(t, http.StatusCreated, created.Code)
	id := envelopeData(t, created)["id"].(string)

	// Explicit nulls clear; raw JSON so the keys are present.
	req := httptest.NewRequest(http.MethodPatch, "/buses/"+id,
		bytes.NewReader([]byte(`{"route": null, "driver": null, "position": null}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Nil(t, data["route"])
	assert.Nil(t, data["driver"])
	assert.Nil(t, data["position"])
}

func TestBusUpdate_AbsentKeysLeaveFieldsUnchanged(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	body := createBusBody()
	body["route"] = "Line 7"
	created := doJSON(t, router, http.MethodPost, "/buses", body)
	require.Equal(t, http.StatusCreated, created.Code)
	id := envelopeData(t, created)["id"].(string)

	w := doJSON(t, router, http.MethodPatch, "/buses/"+id, map[string]any{
		"unitName": "Unit 1 renamed",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, "Unit 1 renamed", data["unitName"])
	assert.Equal(t, "Line 7", data["route"], "untouched field must survive a partial update")
}

func TestBusUpdate_NotFound(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	w := doJSON(t, router, http.MethodPatch, "/buses/"+uuid.NewString(), map[string]any{
		"status": "moving",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Delete ---

func TestBusDelete_NoContent(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	created := doJSON(t, router, http.MethodPost, "/buses", createBusBody())
	require.Equal(t, http.StatusCreated, created.Code)
	id := envelopeData(t, created)["id"].(string)

	w := doJSON(t, router, http.MethodDelete, "/buses/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	again := doJSON(t, router, http.MethodDelete, "/buses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, again.Code)
}

// --- List ---

func TestBusList_PaginationMeta(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	for i := 1; i <= 27; i++ {
		body := map[string]any{
			"licensePlate": fmt.Sprintf("PAG-%03d", i),
			"unitName":     fmt.Sprintf("Unit %d", i),
		}
		require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/buses", body).Code)
	}

	w := doJSON(t, router, http.MethodGet, "/buses?page=2&limit=10", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	meta := env["meta"].(map[string]interface{})
	assert.EqualValues(t, 27, meta["total"])
	assert.EqualValues(t, 2, meta["page"])
	assert.EqualValues(t, 10, meta["limit"])
	assert.EqualValues(t, 3, meta["totalPages"])
	assert.Equal(t, true, meta["hasMore"])

	items := env["data"].([]interface{})
	assert.Len(t, items, 10)
}

func TestBusList_InvalidStatusQuery(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	w := doJSON(t, router, http.MethodGet, "/buses?status=flying", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := envelopeError(t, w)
	assert.Equal(t, "INVALID_QUERY", apiErr["code"])
}

func TestBusList_StatusFilter(t *testing.T) {
	router := newBusRouter(newFakeBusRepo())

	moving := createBusBody()
	moving["licensePlate"] = "FIL-001"
	moving["status"] = "moving"
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/buses", moving).Code)

	parked := createBusBody()
	parked["licensePlate"] = "FIL-002"
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/buses", parked).Code)

	w := doJSON(t, router, http.MethodGet, "/buses?status=moving", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	items := env["data"].([]interface{})
	require.Len(t, items, 1)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "FIL-001", first["licensePlate"])
}
