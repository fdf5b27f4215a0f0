package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sos/internal/emergency"
	"github.com/joescharf/sos/internal/geo"
	"github.com/joescharf/sos/internal/guidance"
	"github.com/joescharf/sos/internal/models"
	"github.com/joescharf/sos/internal/store"
)

var here = models.Coordinates{Latitude: 35.6762, Longitude: 139.6503}

func newTestServer(t *testing.T) (*Server, *emergency.Machine, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	g := geo.New(geo.StaticProvider{Coordinates: here}, geo.Config{})
	t.Cleanup(g.Close)

	m := emergency.New(emergency.Config{Locator: g, Archiver: st})
	t.Cleanup(m.Close)

	return NewServer(m, g, st, "test"), m, st
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestStartEmergency(t *testing.T) {
	srv, m, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleStartEmergency(ctx, callToolReq("sos_start_emergency", map[string]any{
		"description": "there is a fire and smoke",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var s models.EmergencySession
	resultJSON(t, result, &s)
	assert.Equal(t, models.SessionStatusActive, s.Status)
	assert.Equal(t, models.CategoryFire, s.Category)
	assert.Equal(t, s.ID, m.CurrentSession().ID)
}

func TestStartEmergency_CategoryOnly(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleStartEmergency(context.Background(), callToolReq("sos_start_emergency", map[string]any{
		"category": "natural_disaster",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var s models.EmergencySession
	resultJSON(t, result, &s)
	assert.Equal(t, models.CategoryNaturalDisaster, s.Category)
}

func TestStartEmergency_Errors(t *testing.T) {
	srv, m, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleStartEmergency(ctx, callToolReq("sos_start_emergency", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid input")

	result, err = srv.handleStartEmergency(ctx, callToolReq("sos_start_emergency", map[string]any{"category": "weather"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown category")

	assert.Equal(t, models.SessionStatusIdle, m.CurrentSession().Status)
}

func TestUpdateEmergency(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleUpdateEmergency(ctx, callToolReq("sos_update_emergency", map[string]any{"description": "more smoke"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Start an emergency first")

	result, err = srv.handleUpdateEmergency(ctx, callToolReq("sos_update_emergency", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "missing required parameter")

	_, err = srv.handleStartEmergency(ctx, callToolReq("sos_start_emergency", map[string]any{"description": "a robbery"}))
	require.NoError(t, err)

	result, err = srv.handleUpdateEmergency(ctx, callToolReq("sos_update_emergency", map[string]any{"description": "the clerk is bleeding"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var s models.EmergencySession
	resultJSON(t, result, &s)
	assert.Equal(t, models.CategoryMedical, s.Category)
	assert.Equal(t, models.HistoryReclassified, s.History[len(s.History)-1].Kind)
}

func TestEndEmergency(t *testing.T) {
	srv, _, st := newTestServer(t)
	ctx := context.Background()

	_, err := srv.handleStartEmergency(ctx, callToolReq("sos_start_emergency", map[string]any{"category": "accident"}))
	require.NoError(t, err)

	result, err := srv.handleEndEmergency(ctx, callToolReq("sos_end_emergency", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var s models.EmergencySession
	resultJSON(t, result, &s)
	assert.Equal(t, models.SessionStatusResolved, s.Status)

	require.Eventually(t, func() bool {
		n, err := st.CountIncidents(ctx)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	result, err = srv.handleIncidentHistory(ctx, callToolReq("sos_incident_history", nil))
	require.NoError(t, err)
	var incidents []*models.Incident
	resultJSON(t, result, &incidents)
	require.Len(t, incidents, 1)
	assert.Equal(t, models.CategoryAccident, incidents[0].Category)

	result, err = srv.handleIncidentHistory(ctx, callToolReq("sos_incident_history", map[string]any{"id": s.ID}))
	require.NoError(t, err)
	var inc models.Incident
	resultJSON(t, result, &inc)
	assert.Len(t, inc.Events, 2)

	result, err = srv.handleIncidentHistory(ctx, callToolReq("sos_incident_history", map[string]any{"id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSessionStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleSessionStatus(context.Background(), callToolReq("sos_session_status", nil))
	require.NoError(t, err)
	var s models.EmergencySession
	resultJSON(t, result, &s)
	assert.Equal(t, models.SessionStatusIdle, s.Status)
}

func TestGuidance(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleGuidance(ctx, callToolReq("sos_guidance", map[string]any{"category": "medical"}))
	require.NoError(t, err)
	var out struct {
		Category models.Category `json:"category"`
		Steps    []string        `json:"steps"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, guidance.For(models.CategoryMedical), out.Steps)

	result, err = srv.handleGuidance(ctx, callToolReq("sos_guidance", map[string]any{"query": "cpr"}))
	require.NoError(t, err)
	var guides []guidance.Guide
	resultJSON(t, result, &guides)
	require.Len(t, guides, 1)
	assert.Equal(t, "cpr", guides[0].ID)

	result, err = srv.handleGuidance(ctx, callToolReq("sos_guidance", map[string]any{"query": "zzz"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No first-aid guides")

	result, err = srv.handleGuidance(ctx, callToolReq("sos_guidance", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRequestLocation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleRequestLocation(context.Background(), callToolReq("sos_request_location", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var loc models.LocationState
	resultJSON(t, result, &loc)
	assert.Equal(t, models.LocationStatusReady, loc.Status)
	require.NotNil(t, loc.Coordinates)
	assert.Equal(t, here, *loc.Coordinates)
}

func TestRequestLocation_Disabled(t *testing.T) {
	m := emergency.New(emergency.Config{})
	t.Cleanup(m.Close)
	srv := NewServer(m, nil, nil, "")

	result, err := srv.handleRequestLocation(context.Background(), callToolReq("sos_request_location", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
