package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/curvelabs/launchpad/internal/chain"
	"github.com/curvelabs/launchpad/internal/launch"
	"github.com/curvelabs/launchpad/internal/market"
	"github.com/curvelabs/launchpad/internal/store"
	"github.com/curvelabs/launchpad/internal/workflow"
)

const (
	testPayment = "0xd2a4cff31913016155e38e474a2c06d08be276cf"
	testCurve   = "0x36d0bf624b90a9dad39d85dcafc83f14dab0272f"
)

func newTestServer(t *testing.T, gw *chain.MemoryGateway, marketURL string) *Server {
	t.Helper()
	return newTestServerWithStore(t, gw, marketURL, store.NewMemory())
}

func newTestServerWithStore(t *testing.T, gw *chain.MemoryGateway, marketURL string, st store.WorkflowStore) *Server {
	t.Helper()

	svc, err := launch.NewService(launch.Config{
		Gateway: gw,
		Store:   st,
		Contracts: launch.Contracts{
			ProviderFactory: "0x1b4357bff5a01bdf2a6581247cf9ed1e24629176",
			CurveFactory:    "0x48c40d4666f93408be1bef038b6722404d9a4c2a",
			PaymentToken:    testPayment,
		},
		SubmitRate: rate.Inf,
	})
	if err != nil {
		t.Fatalf("launch service: %v", err)
	}

	var ms *market.Service
	if marketURL != "" {
		ms = market.NewService(market.ServiceConfig{Client: market.NewClient(marketURL, 0)})
	}

	return NewServer(Config{
		Launch:          svc,
		Market:          ms,
		ExplorerBaseURL: "https://explorer.example",
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestServer_StartAndGetLaunch(t *testing.T) {
	gw := chain.NewMemoryGateway()
	gw.AutoConfirm(true)
	gw.SetIntegerRead(testPayment, "allowance", big.NewInt(1_000_000))
	gw.StubReceipt("deployProvider", &chain.Receipt{Success: true, DeployedAddress: "0xprov"})
	gw.StubReceipt("deployCurve", &chain.Receipt{Success: true, CurveAddress: "0xcurve", TokenAddress: "0xtoken"})

	s := newTestServer(t, gw, "")

	rec, resp := doJSON(t, s.Router(), http.MethodPost, "/api/v1/launches",
		`{"owner":"0xowner","name":"Demo","symbol":"DEMO","seed_amount":"100"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start launch status = %d, body %s", rec.Code, rec.Body.String())
	}
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatalf("no launch id in response: %v", resp)
	}

	// Background run; poll until complete.
	deadline := time.Now().Add(3 * time.Second)
	for {
		rec, resp = doJSON(t, s.Router(), http.MethodGet, "/api/v1/launches/"+id, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("get launch status = %d", rec.Code)
		}
		if resp["status"] == "complete" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("launch never completed: %v", resp)
		}
		time.Sleep(5 * time.Millisecond)
	}

	steps, _ := resp["steps"].([]interface{})
	first, _ := steps[0].(map[string]interface{})
	if url, _ := first["explorer_url"].(string); !strings.HasPrefix(url, "https://explorer.example/tx/") {
		t.Fatalf("explorer url not rendered: %v", first)
	}
}

func TestServer_GetLaunchNotFound(t *testing.T) {
	s := newTestServer(t, chain.NewMemoryGateway(), "")
	rec, _ := doJSON(t, s.Router(), http.MethodGet, "/api/v1/launches/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestServer_BuyCompletes(t *testing.T) {
	gw := chain.NewMemoryGateway()
	gw.SetIntegerRead(testPayment, "allowance", big.NewInt(1000))
	gw.StubReceipt("buy", &chain.Receipt{Success: true})

	s := newTestServer(t, gw, "")
	rec, resp := doJSON(t, s.Router(), http.MethodPost, "/api/v1/trades/buy",
		fmt.Sprintf(`{"owner":"0xowner","curve":"%s","amount":"10","cost":"250"}`, testCurve))
	if rec.Code != http.StatusOK {
		t.Fatalf("buy status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp["status"] != "complete" {
		t.Fatalf("buy not complete: %v", resp)
	}
}

func TestServer_BuyRevertReturns422(t *testing.T) {
	gw := chain.NewMemoryGateway()
	gw.SetIntegerRead(testPayment, "allowance", big.NewInt(1000))
	gw.StubReceipt("buy", &chain.Receipt{Success: false, RevertReason: "curve: slippage exceeded"})

	s := newTestServer(t, gw, "")
	rec, resp := doJSON(t, s.Router(), http.MethodPost, "/api/v1/trades/buy",
		fmt.Sprintf(`{"owner":"0xowner","curve":"%s","amount":"10","cost":"250"}`, testCurve))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if msg, _ := resp["error"].(string); !strings.Contains(msg, "slippage") {
		t.Fatalf("revert reason not surfaced: %v", resp)
	}
}

func TestServer_BuyInvalidAmount(t *testing.T) {
	s := newTestServer(t, chain.NewMemoryGateway(), "")
	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/api/v1/trades/buy",
		fmt.Sprintf(`{"owner":"0xowner","curve":"%s","amount":"ten"}`, testCurve))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestServer_BuyMalformedCurveReturns400(t *testing.T) {
	gw := chain.NewMemoryGateway()
	s := newTestServer(t, gw, "")
	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/api/v1/trades/buy",
		`{"owner":"0xowner","curve":"not-a-hash","amount":"10","cost":"250"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(gw.Submitted()) != 0 {
		t.Fatalf("malformed curve reached the ledger")
	}
}

func TestServer_StartLaunchMissingFieldsReturns400(t *testing.T) {
	s := newTestServer(t, chain.NewMemoryGateway(), "")
	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/api/v1/launches",
		`{"owner":"0xowner","name":"Demo"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// brokenStore fails every read, standing in for a database outage.
type brokenStore struct{ store.WorkflowStore }

func (b *brokenStore) GetWorkflow(ctx context.Context, id string) (workflow.Snapshot, error) {
	return workflow.Snapshot{}, fmt.Errorf("connection refused")
}

func TestServer_StoreFailureReturns500(t *testing.T) {
	st := &brokenStore{WorkflowStore: store.NewMemory()}
	s := newTestServerWithStore(t, chain.NewMemoryGateway(), "", st)

	rec, _ := doJSON(t, s.Router(), http.MethodGet, "/api/v1/launches/wf-1", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("get status = %d, want 500", rec.Code)
	}

	rec, _ = doJSON(t, s.Router(), http.MethodPost, "/api/v1/launches/wf-1/resume", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("resume status = %d, want 500", rec.Code)
	}
}

func TestServer_CandlesAndTimeframes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/candles"):
			fmt.Fprint(w, `{"candles":[],"count":0}`)
		case strings.HasSuffix(r.URL.Path, "/timeframes"):
			fmt.Fprint(w, `{"timeframes":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	s := newTestServer(t, chain.NewMemoryGateway(), upstream.URL)

	rec, resp := doJSON(t, s.Router(), http.MethodGet, "/api/v1/market/ent-1/candles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("candles status = %d", rec.Code)
	}
	if resp["stale"] != false || resp["count"] != float64(0) {
		t.Fatalf("unexpected candle response: %v", resp)
	}

	rec, resp = doJSON(t, s.Router(), http.MethodGet, "/api/v1/market/ent-1/timeframes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("timeframes status = %d", rec.Code)
	}
	frames, _ := resp["timeframes"].([]interface{})
	if len(frames) != 1 || frames[0] != market.DefaultTimeframe {
		t.Fatalf("expected default timeframe fallback, got %v", frames)
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, chain.NewMemoryGateway(), "")
	rec, resp := doJSON(t, s.Router(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("health = %d %v", rec.Code, resp)
	}
}
