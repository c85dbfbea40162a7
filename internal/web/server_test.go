package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"carbonex.market/cmx/internal/abci"
	"carbonex.market/cmx/internal/api"
	"carbonex.market/cmx/internal/docs"
	"carbonex.market/cmx/internal/identity"
	"carbonex.market/cmx/internal/ledger"
	"carbonex.market/cmx/internal/logger"
	"carbonex.market/cmx/internal/market"
	"carbonex.market/cmx/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T, docsDir string) *Server {
	t.Helper()
	backend, err := ledger.OpenMemory()
	require.NoError(t, err)
	state, err := ledger.NewWorldState(backend, 64)
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	hub := NewHub()
	app := abci.NewABCIApplication(state, market.New(market.Config{}), hub)
	l := logger.New(50)
	svc := api.NewService(abci.NewLocalExecutor(app, 3), app, state, l, "standalone")

	var docService *docs.Service
	if docsDir != "" {
		docService = docs.NewService(docsDir)
	}
	s, err := NewServer(0, svc, docService, hub, l)
	require.NoError(t, err)
	t.Cleanup(hub.Close)
	return s
}

func signedTx(t *testing.T, signer *identity.Identity, method types.Method, args interface{}) []byte {
	t.Helper()
	tx, err := types.NewTransaction(method, args)
	require.NoError(t, err)
	stx, err := tx.Sign(signer)
	require.NoError(t, err)
	b, err := json.Marshal(stx)
	require.NoError(t, err)
	return b
}

func post(t *testing.T, s *Server, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tx", bytes.NewReader(body)))
	return w
}

func dial(t *testing.T, s *Server, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	before := s.Hub().Subscribers()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == before+1 },
		time.Second, 5*time.Millisecond)
	return conn
}

func readBlock(t *testing.T, conn *websocket.Conn) BlockMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg BlockMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	all := dial(t, s, srv, "")
	defer all.Close()
	proposals := dial(t, s, srv, "?event="+market.EventProposalSubmitted)
	defer proposals.Close()

	gov, err := identity.Generate()
	require.NoError(t, err)

	w := post(t, s, signedTx(t, gov, types.MethodInitialize, types.InitializeArgs{GovernmentName: "Republic"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = post(t, s, signedTx(t, gov, types.MethodSubmitProposal, types.SubmitProposalArgs{
		Description: "Peatland rewetting", Target: 40,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	first := readBlock(t, all)
	assert.EqualValues(t, 1, first.Height)
	require.Len(t, first.Events, 1)
	assert.Equal(t, market.EventGovernmentInitialized, first.Events[0].Name)

	second := readBlock(t, all)
	assert.EqualValues(t, 2, second.Height)
	require.Len(t, second.Events, 1)
	assert.Equal(t, market.EventProposalSubmitted, second.Events[0].Name)

	// The filtered stream skips the initialization block.
	filtered := readBlock(t, proposals)
	assert.EqualValues(t, 2, filtered.Height)
	require.Len(t, filtered.Events, 1)
	var proposal types.Proposal
	require.NoError(t, json.Unmarshal(filtered.Events[0].Payload, &proposal))
	assert.Equal(t, "Peatland rewetting", proposal.Description)
	assert.Equal(t, gov.ID(), proposal.Proposer)
	assert.Equal(t, filtered.Events[0].TxID, second.Events[0].TxID)
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, s, srv, "")
	defer conn.Close()

	s.Hub().Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, s.Hub().Subscribers())

	// A closed hub refuses new subscribers.
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	late, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
}

func TestSubscriberDisconnectUnregisters(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, s, srv, "")
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 0 },
		time.Second, 5*time.Millisecond)

	// Notifying with nobody listening is a no-op.
	s.Hub().Notify(1, []ledger.Event{{Name: "x", TxID: "t", Payload: []byte(`{}`)}})
}

func TestAPIRoutes(t *testing.T) {
	s := newTestServer(t, "")

	for _, path := range []string{"/api/health", "/api/version", "/api/logs", "/api/balance?id=abc"} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"), path)
	}
}

func TestDocsView(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "operators.adoc"),
		[]byte("= Operator Guide\n\nRun `cmx --mode standalone`.\n"), 0o644))
	s := newTestServer(t, dir)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/docs/operators.adoc"`)
	assert.Equal(t, "0", w.Header().Get("Expires"))

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/operators.adoc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>Operator Guide - cmx docs</title>")
	assert.Contains(t, w.Body.String(), "cmx --mode standalone")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/missing.adoc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocsDisabled(t *testing.T) {
	s := newTestServer(t, "")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
