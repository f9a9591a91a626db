package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bardlex/gomc/internal/algo"
	"github.com/bardlex/gomc/internal/mining"
	"github.com/bardlex/gomc/pkg/errors"
	"github.com/bardlex/gomc/pkg/log"
)

func testLogger() *log.Logger {
	return log.New("node-test", "0.0.0", "error", "text")
}

type captureSink struct {
	mu   sync.Mutex
	jobs []mining.Job
}

func (c *captureSink) UpdateJob(job mining.Job) {
	c.mu.Lock()
	c.jobs = append(c.jobs, job)
	c.mu.Unlock()
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// fakeDaemon serves canned JSON-RPC results keyed by method name and records
// the requests it saw.
type fakeDaemon struct {
	t       *testing.T
	mu      sync.Mutex
	results map[string]string
	calls   []rpcRequest
}

func newFakeDaemon(t *testing.T) (*fakeDaemon, *httptest.Server) {
	d := &fakeDaemon{t: t, results: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(d.handle))
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *fakeDaemon) handle(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.t.Errorf("daemon decode failed: %v", err)
		return
	}

	d.mu.Lock()
	d.calls = append(d.calls, req)
	result, ok := d.results[req.Method]
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.Write([]byte(`{"error":{"code":-32601,"message":"method not found"}}`))
		return
	}
	w.Write([]byte(`{"result":` + result + `}`))
}

func (d *fakeDaemon) set(method, result string) {
	d.mu.Lock()
	d.results[method] = result
	d.mu.Unlock()
}

func (d *fakeDaemon) callsFor(method string) []rpcRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []rpcRequest
	for _, c := range d.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func testSession(t *testing.T, url string, sink JobSink) *Session {
	t.Helper()
	session, err := NewSession(Config{
		URL:           url,
		Username:      "miner",
		Password:      "secret",
		WalletAddress: "wallet-address",
	}, sink, testLogger())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return session
}

const templateResult = `{"job_id":"tmpl-1","blocktemplate_blob":"0102ab","target":"00ffff","height":42,"difficulty":1000}`

func TestGetBlockTemplate(t *testing.T) {
	daemon, srv := newFakeDaemon(t)
	daemon.set("getblocktemplate", templateResult)

	session := testSession(t, srv.URL, &captureSink{})

	job, err := session.GetBlockTemplate(context.Background())
	if err != nil {
		t.Fatalf("GetBlockTemplate failed: %v", err)
	}

	if job.ID != "tmpl-1" {
		t.Errorf("expected job tmpl-1, got %s", job.ID)
	}
	if job.Algorithm != algo.KindRandomX {
		t.Errorf("expected randomx, got %s", job.Algorithm)
	}
	if len(job.Blob) != 3 || job.Blob[0] != 0x01 {
		t.Errorf("unexpected blob %x", job.Blob)
	}
	if len(job.Target) != 3 {
		t.Errorf("unexpected target %x", job.Target)
	}

	calls := daemon.callsFor("getblocktemplate")
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	params, _ := json.Marshal(calls[0].Params)
	var decoded blockTemplateParams
	if err := json.Unmarshal(params, &decoded); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if decoded.WalletAddress != "wallet-address" {
		t.Errorf("expected wallet address, got %s", decoded.WalletAddress)
	}
	if decoded.ReserveSize != templateReserveSize {
		t.Errorf("expected reserve size %d, got %d", templateReserveSize, decoded.ReserveSize)
	}
}

func TestGetBlockTemplateMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{"missing job_id", `{"blocktemplate_blob":"ab","target":"ff"}`},
		{"missing blob", `{"job_id":"1","target":"ff"}`},
		{"missing target", `{"job_id":"1","blocktemplate_blob":"ab"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			daemon, srv := newFakeDaemon(t)
			daemon.set("getblocktemplate", tt.result)
			session := testSession(t, srv.URL, &captureSink{})

			_, err := session.GetBlockTemplate(context.Background())
			if err == nil {
				t.Fatal("expected error for incomplete template")
			}
			if !errors.IsType(err, errors.ErrorTypeProtocol) {
				t.Errorf("expected protocol error, got %v", err)
			}
		})
	}
}

func TestSubmitBlockSendsResultHex(t *testing.T) {
	daemon, srv := newFakeDaemon(t)
	daemon.set("submitblock", `{"status":"OK"}`)
	session := testSession(t, srv.URL, &captureSink{})

	var result [32]byte
	result[0] = 0xde
	result[31] = 0xad
	share := mining.Share{JobID: "tmpl-1", Nonce: 7, Result: result}

	if err := session.SubmitBlock(context.Background(), share); err != nil {
		t.Fatalf("SubmitBlock failed: %v", err)
	}

	calls := daemon.callsFor("submitblock")
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	params, _ := json.Marshal(calls[0].Params)
	var decoded submitBlockParams
	if err := json.Unmarshal(params, &decoded); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if len(decoded.Block) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(decoded.Block))
	}
	if decoded.Block[:2] != "de" || decoded.Block[62:] != "ad" {
		t.Errorf("unexpected block hex %s", decoded.Block)
	}
}

func TestCheckChainDetectsHeightIncrease(t *testing.T) {
	daemon, srv := newFakeDaemon(t)
	daemon.set("get_info", `{"height":100}`)
	session := testSession(t, srv.URL, &captureSink{})

	var seen []uint64
	session.SetHeightHandler(func(h uint64) { seen = append(seen, h) })

	advanced, err := session.checkChain(context.Background())
	if err != nil {
		t.Fatalf("checkChain failed: %v", err)
	}
	if !advanced {
		t.Error("expected first poll to record height")
	}

	// Same height again: no change.
	advanced, err = session.checkChain(context.Background())
	if err != nil {
		t.Fatalf("checkChain failed: %v", err)
	}
	if advanced {
		t.Error("expected no change at same height")
	}

	daemon.set("get_info", `{"height":101}`)
	advanced, err = session.checkChain(context.Background())
	if err != nil {
		t.Fatalf("checkChain failed: %v", err)
	}
	if !advanced {
		t.Error("expected height increase to be detected")
	}

	if len(seen) != 2 || seen[0] != 100 || seen[1] != 101 {
		t.Errorf("unexpected handler calls: %v", seen)
	}
}

func TestRPCErrorSurfacesAsProtocolError(t *testing.T) {
	_, srv := newFakeDaemon(t)
	session := testSession(t, srv.URL, &captureSink{})

	_, err := session.GetBlockTemplate(context.Background())
	if err == nil {
		t.Fatal("expected error from daemon")
	}
	if !errors.IsType(err, errors.ErrorTypeProtocol) {
		t.Errorf("expected protocol error, got %v", err)
	}
}

func TestRPCBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotAuth = r.BasicAuth()
		w.Write([]byte(`{"result":{"height":1}}`))
	}))
	t.Cleanup(srv.Close)

	session := testSession(t, srv.URL, &captureSink{})
	if _, err := session.checkChain(context.Background()); err != nil {
		t.Fatalf("checkChain failed: %v", err)
	}

	if !gotAuth {
		t.Fatal("expected basic auth header")
	}
	if gotUser != "miner" || gotPass != "secret" {
		t.Errorf("unexpected credentials %s:%s", gotUser, gotPass)
	}
}

func TestRunSubmitsAndRefreshes(t *testing.T) {
	daemon, srv := newFakeDaemon(t)
	daemon.set("getblocktemplate", templateResult)
	daemon.set("submitblock", `{"status":"OK"}`)
	daemon.set("get_info", `{"height":42}`)

	sink := &captureSink{}
	session := testSession(t, srv.URL, sink)

	shares := make(chan mining.Share, 1)
	shares <- mining.Share{JobID: "tmpl-1", Nonce: 7}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx, shares) }()

	deadline := time.After(5 * time.Second)
	for sink.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for template refresh after submit")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}

	if len(daemon.callsFor("submitblock")) != 1 {
		t.Error("expected exactly one submitblock call")
	}
	if len(daemon.callsFor("getblocktemplate")) < 2 {
		t.Error("expected template refresh after submission")
	}
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := NewSession(Config{URL: "http://x"}, &captureSink{}, testLogger()); err == nil {
		t.Error("expected error for missing wallet")
	}
	if _, err := NewSession(Config{WalletAddress: "w"}, &captureSink{}, testLogger()); err == nil {
		t.Error("expected error for missing URL")
	}
	if _, err := NewSession(Config{URL: "http://x", WalletAddress: "w"}, nil, testLogger()); err == nil {
		t.Error("expected error for missing sink")
	}
}
