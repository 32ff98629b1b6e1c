package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/himanshumudigonda/musclemeter/internal/database/memory"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/himanshumudigonda/musclemeter/internal/service"
	"github.com/himanshumudigonda/musclemeter/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router *gin.Engine
	hub    *pubsub.Hub
	tokens *auth.Manager
}

func newTestAPI(t *testing.T, checks map[string]HealthCheck) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	hub := pubsub.NewHub()
	venueRepo, planRepo, bookingRepo := store.Venues(), store.Plans(), store.Bookings()

	venues := service.NewVenueService(venueRepo, planRepo, "MuscleMeter membership", hub)
	handlers := Handlers{
		Venue:     NewVenueHandler(venues),
		Booking:   NewBookingHandler(service.NewBookingService(bookingRepo, venueRepo, planRepo, nil, hub)),
		Occupancy: NewOccupancyHandler(service.NewCapacityService(venueRepo, hub)),
		Stream:    NewStreamHandler(venues, hub, time.Minute),
	}

	tokens, err := auth.NewManager("test-secret", "musclemeter", time.Hour)
	require.NoError(t, err)

	router := InitRoutes(handlers, tokens, RouterConfig{
		AllowedOrigins: []string{"*"},
		RequestTimeout: 5 * time.Second,
		HealthChecks:   checks,
	})
	return &testAPI{router: router, hub: hub, tokens: tokens}
}

func (a *testAPI) token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := a.tokens.CreateAccessToken(sub, role, "")
	require.NoError(t, err)
	return tok
}

type apiResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Count int `json:"count"`
	} `json:"meta"`
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type venueView struct {
	ID    string `json:"id"`
	Plans []struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	} `json:"plans"`
}

func newVenueBody(name string, capacity int) gin.H {
	return gin.H{
		"name":         name,
		"address":      "12 MG Road, Pune",
		"latitude":     18.5204,
		"longitude":    73.8567,
		"upi_id":       "ironden@upi",
		"max_capacity": capacity,
		"amenities":    []string{"Showers", "Parking"},
		"plans":        []gin.H{{"name": "Monthly", "price": 1999, "duration_days": 30}},
	}
}

func (a *testAPI) createVenue(t *testing.T, ownerToken, name string, capacity int) venueView {
	t.Helper()
	code, resp := a.do(t, http.MethodPost, "/api/v1/owner/venues", ownerToken, newVenueBody(name, capacity))
	require.Equal(t, http.StatusCreated, code, resp.Error)
	return decode[venueView](t, resp.Data)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	code, _ := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	degraded := newTestAPI(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	degraded.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, nil)

	code, _ := api.do(t, http.MethodGet, "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(t, http.MethodGet, "/api/v1/bookings", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	athlete := api.token(t, "athlete-1", "athlete")
	code, _ = api.do(t, http.MethodPost, "/api/v1/owner/venues", athlete, newVenueBody("Iron Den", 50))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.token(t, "owner-1", "owner")
	athlete := api.token(t, "athlete-1", "athlete")
	venue := api.createVenue(t, owner, "Iron Den", 50)

	code, resp := api.do(t, http.MethodPost, "/api/v1/bookings", athlete, gin.H{
		"venue_id":          venue.ID,
		"plan_id":           venue.Plans[0].ID,
		"payment_reference": "  UPI123456789012 ",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	booking := decode[struct {
		ID               string  `json:"id"`
		Status           string  `json:"status"`
		Amount           float64 `json:"amount"`
		PaymentReference string  `json:"payment_reference"`
	}](t, resp.Data)
	assert.Equal(t, "pending", booking.Status)
	assert.Equal(t, 1999.0, booking.Amount)
	assert.Equal(t, "UPI123456789012", booking.PaymentReference)

	code, resp = api.do(t, http.MethodGet, "/api/v1/owner/venues/"+venue.ID+"/bookings?status=pending", owner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, resp.Meta.Count)

	code, _ = api.do(t, http.MethodPost, "/api/v1/owner/bookings/"+booking.ID+"/approve", owner, nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = api.do(t, http.MethodPost, "/api/v1/owner/bookings/"+booking.ID+"/reject", owner, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, resp.Success)

	code, resp = api.do(t, http.MethodGet, "/api/v1/owner/venues/"+venue.ID+"/stats", owner, nil)
	require.Equal(t, http.StatusOK, code)
	stats := decode[struct {
		TotalRevenue  float64 `json:"total_revenue"`
		PendingCount  int     `json:"pending_count"`
		ActiveMembers int     `json:"active_members"`
	}](t, resp.Data)
	assert.Equal(t, 1999.0, stats.TotalRevenue)
	assert.Equal(t, 0, stats.PendingCount)
	assert.Equal(t, 1, stats.ActiveMembers)

	code, resp = api.do(t, http.MethodGet, "/api/v1/bookings", athlete, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, resp.Meta.Count)

	stranger := api.token(t, "athlete-2", "athlete")
	code, _ = api.do(t, http.MethodGet, "/api/v1/bookings/"+booking.ID, stranger, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.token(t, "owner-1", "owner")
	rival := api.token(t, "owner-2", "owner")
	athlete := api.token(t, "athlete-1", "athlete")
	venue := api.createVenue(t, owner, "Iron Den", 50)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{"unknown venue", http.MethodGet, "/api/v1/venues/missing", "", nil, http.StatusNotFound},
		{"malformed reference", http.MethodPost, "/api/v1/bookings", athlete,
			gin.H{"venue_id": venue.ID, "plan_id": venue.Plans[0].ID, "payment_reference": "abc"}, http.StatusBadRequest},
		{"foreign plan", http.MethodPost, "/api/v1/bookings", athlete,
			gin.H{"venue_id": venue.ID, "plan_id": "nope"}, http.StatusBadRequest},
		{"missing body fields", http.MethodPost, "/api/v1/bookings", athlete, gin.H{}, http.StatusBadRequest},
		{"zero capacity", http.MethodPost, "/api/v1/owner/venues", owner, newVenueBody("Empty", 0), http.StatusBadRequest},
		{"not the owner", http.MethodPut, "/api/v1/owner/venues/" + venue.ID + "/occupancy", rival,
			gin.H{"count": 3}, http.StatusForbidden},
		{"unknown booking status", http.MethodGet, "/api/v1/owner/venues/" + venue.ID + "/bookings?status=cancelled", owner,
			nil, http.StatusBadRequest},
		{"bad sort", http.MethodGet, "/api/v1/venues?sort=rating", "", nil, http.StatusBadRequest},
		{"lat without lng", http.MethodGet, "/api/v1/venues?lat=18.5", "", nil, http.StatusBadRequest},
		{"nan latitude", http.MethodGet, "/api/v1/venues?lat=NaN&lng=0&sort=distance", "", nil, http.StatusBadRequest},
		{"infinite longitude", http.MethodGet, "/api/v1/venues?lat=0&lng=Inf", "", nil, http.StatusBadRequest},
		{"latitude out of range", http.MethodGet, "/api/v1/venues?lat=91&lng=0", "", nil, http.StatusBadRequest},
		{"nan max price", http.MethodGet, "/api/v1/venues?max_price=NaN", "", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, code, resp.Error)
			assert.False(t, resp.Success)
		})
	}

	code, _ := api.do(t, http.MethodDelete, "/api/v1/owner/venues/"+venue.ID, owner, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodPost, "/api/v1/bookings", athlete, gin.H{"venue_id": venue.ID, "plan_id": venue.Plans[0].ID})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestOccupancyAndDiscovery(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.token(t, "owner-1", "owner")
	busy := api.createVenue(t, owner, "Iron Den", 50)
	quiet := api.createVenue(t, owner, "Calm Barbell", 40)

	code, resp := api.do(t, http.MethodPut, "/api/v1/owner/venues/"+busy.ID+"/occupancy", owner, gin.H{"count": 45})
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, resp = api.do(t, http.MethodPost, "/api/v1/owner/venues/"+busy.ID+"/occupancy", owner, gin.H{"delta": 20})
	require.Equal(t, http.StatusOK, code)
	occ := decode[struct {
		Current int    `json:"current"`
		Level   string `json:"level"`
	}](t, resp.Data)
	assert.Equal(t, 50, occ.Current)
	assert.Equal(t, "busy", occ.Level)

	code, resp = api.do(t, http.MethodGet, "/api/v1/venues?crowd=quiet", "", nil)
	require.Equal(t, http.StatusOK, code)
	items := decode[[]struct {
		Venue venueView `json:"venue"`
	}](t, resp.Data)
	require.Len(t, items, 1)
	assert.Equal(t, quiet.ID, items[0].Venue.ID)

	code, resp = api.do(t, http.MethodGet, "/api/v1/venues?lat=18.52&lng=73.85&sort=distance&amenities=showers,parking", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, resp.Meta.Count)

	code, resp = api.do(t, http.MethodDelete, "/api/v1/owner/venues/"+busy.ID+"/occupancy", owner, nil)
	require.Equal(t, http.StatusOK, code)
	occ = decode[struct {
		Current int    `json:"current"`
		Level   string `json:"level"`
	}](t, resp.Data)
	assert.Equal(t, 0, occ.Current)

	code, resp = api.do(t, http.MethodGet, "/api/v1/venues/"+busy.ID+"/plans/"+busy.Plans[0].ID+"/payment-link", "", nil)
	require.Equal(t, http.StatusOK, code)
	link := decode[struct {
		URL string `json:"url"`
	}](t, resp.Data)
	assert.True(t, strings.HasPrefix(link.URL, "upi://pay?"))
}

func TestVenueStream(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.token(t, "owner-1", "owner")
	venue := api.createVenue(t, owner, "Iron Den", 50)

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/venues/"+venue.ID+"/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	waitFor := func(event string) string {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.TrimSpace(line) == "event:"+event {
				data, err := reader.ReadString('\n')
				require.NoError(t, err)
				return data
			}
		}
	}

	snapshot := waitFor("snapshot")
	assert.Contains(t, snapshot, venue.ID)
	assert.Equal(t, 1, api.hub.Subscribers(venue.ID))

	code, _ := api.do(t, http.MethodPut, "/api/v1/owner/venues/"+venue.ID+"/occupancy", owner, gin.H{"count": 31})
	require.Equal(t, http.StatusOK, code)

	changed := waitFor(string(pubsub.EventOccupancyChanged))
	assert.Contains(t, changed, `"current":31`)

	athlete := api.token(t, "athlete-1", "athlete")
	code, bookResp := api.do(t, http.MethodPost, "/api/v1/bookings", athlete, gin.H{
		"venue_id":          venue.ID,
		"plan_id":           venue.Plans[0].ID,
		"payment_reference": "UPI123456789012",
	})
	require.Equal(t, http.StatusCreated, code, bookResp.Error)

	created := waitFor(string(pubsub.EventBookingCreated))
	assert.Contains(t, created, `"status":"pending"`)
	assert.NotContains(t, created, "UPI123456789012")
	assert.NotContains(t, created, "payment_reference")
	assert.NotContains(t, created, "athlete-1")

	cancel()
	assert.Eventually(t, func() bool { return api.hub.Subscribers(venue.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamUnknownVenue(t *testing.T) {
	api := newTestAPI(t, nil)
	code, _ := api.do(t, http.MethodGet, "/api/v1/venues/missing/stream", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 0, api.hub.Subscribers("missing"))
}
