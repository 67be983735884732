package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dqguardrail/guardrail/internal/remote"
)

// backend serves the catalog endpoints and counts hits per path.
type backend struct {
	mu      sync.Mutex
	hits    map[string]int
	fail    map[string]bool
	release chan struct{}
}

func newBackend() *backend {
	return &backend{hits: make(map[string]int), fail: make(map[string]bool)}
}

func (b *backend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *backend) setFail(path string, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[path] = v
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, r *http.Request, v any) {
		b.mu.Lock()
		b.hits[r.URL.Path]++
		fail := b.fail[r.URL.Path]
		release := b.release
		b.mu.Unlock()
		if release != nil {
			<-release
		}
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"detail":"upstream down"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /api/catalogs", func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, map[string]any{
			"catalogs": []map[string]string{{"name": "main"}, {"name": "samples"}},
			"mock":     true,
		})
	})
	mux.HandleFunc("GET /api/catalogs/{catalog}/schemas", func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, map[string]any{"schemas": []map[string]string{{"name": "sales"}, {"name": "default"}}})
	})
	mux.HandleFunc("GET /api/catalogs/{catalog}/schemas/{schema}/tables", func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, map[string]any{"tables": []map[string]any{
			{"name": "orders", "table_type": "MANAGED", "data_source_format": "DELTA"},
			{"name": "revenue_daily", "table_type": "VIEW"},
		}})
	})
	mux.HandleFunc("GET /api/catalogs/{catalog}/schemas/{schema}/tables/{table}", func(w http.ResponseWriter, r *http.Request) {
		c, s, tb := r.PathValue("catalog"), r.PathValue("schema"), r.PathValue("table")
		reply(w, r, map[string]any{
			"full_name":          c + "." + s + "." + tb,
			"table_type":         "MANAGED",
			"data_source_format": "DELTA",
			"owner":              "admin",
			"columns":            []map[string]any{{"name": "id", "type_name": "LONG", "nullable": false}},
		})
	})
	return mux
}

func newTestCache(t *testing.T) (*Cache, *backend) {
	t.Helper()
	b := newBackend()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	return New(remote.New(srv.URL), slog.Default()), b
}

func TestLoadRoots_OnceWithMockFlag(t *testing.T) {
	c, b := newTestCache(t)
	ctx := context.Background()

	roots, mock, err := c.LoadRoots(ctx)
	if err != nil {
		t.Fatalf("LoadRoots: %v", err)
	}
	if len(roots) != 2 || roots[0].Name != "main" {
		t.Errorf("roots = %+v", roots)
	}
	if !mock {
		t.Error("expected mock flag")
	}
	c.LoadRoots(ctx)
	if n := b.count("/api/catalogs"); n != 1 {
		t.Errorf("catalog list fetched %d times, want 1", n)
	}
}

func TestToggleCatalog_CacheOnce(t *testing.T) {
	c, b := newTestCache(t)
	ctx := context.Background()
	c.LoadRoots(ctx)

	expanded, err := c.ToggleCatalog(ctx, "main")
	if err != nil || !expanded {
		t.Fatalf("expand: expanded=%v err=%v", expanded, err)
	}
	if n := b.count("/api/catalogs/main/schemas"); n != 1 {
		t.Fatalf("schemas fetched %d times, want 1", n)
	}

	expanded, _ = c.ToggleCatalog(ctx, "main")
	if expanded {
		t.Error("second toggle should collapse")
	}
	expanded, _ = c.ToggleCatalog(ctx, "main")
	if !expanded {
		t.Error("third toggle should expand")
	}
	if n := b.count("/api/catalogs/main/schemas"); n != 1 {
		t.Errorf("schemas fetched %d times after re-expand, want 1", n)
	}
}

func TestToggleSchema_CacheOnce(t *testing.T) {
	c, b := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := c.ToggleSchema(ctx, "main", "sales"); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
	}
	if n := b.count("/api/catalogs/main/schemas/sales/tables"); n != 1 {
		t.Errorf("tables fetched %d times, want 1", n)
	}
	tables, ok := c.Tables("main", "sales")
	if !ok || len(tables) != 2 {
		t.Errorf("tables = %+v ok=%v", tables, ok)
	}
}

func TestLoadSchemas_ConcurrentCallsShareOneFetch(t *testing.T) {
	c, b := newTestCache(t)
	release := make(chan struct{})
	b.mu.Lock()
	b.release = release
	b.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.LoadSchemas(context.Background(), "main")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("call %d: %v", i, err)
		}
	}
	if n := b.count("/api/catalogs/main/schemas"); n != 1 {
		t.Errorf("schemas fetched %d times, want 1", n)
	}
}

func TestToggleCatalog_FailureLeavesStateUntouched(t *testing.T) {
	c, b := newTestCache(t)
	ctx := context.Background()
	c.LoadRoots(ctx)

	if _, err := c.ToggleCatalog(ctx, "samples"); err != nil {
		t.Fatalf("expand samples: %v", err)
	}

	b.setFail("/api/catalogs/main/schemas", true)
	expanded, err := c.ToggleCatalog(ctx, "main")
	if err == nil {
		t.Fatal("expected error")
	}
	if !remote.IsRejected(err) {
		t.Errorf("expected RequestRejected, got %v", err)
	}
	if expanded || c.CatalogExpanded("main") {
		t.Error("failed expand should leave catalog collapsed")
	}
	if _, ok := c.Schemas("main"); ok {
		t.Error("failed fetch must not populate cache")
	}
	if !c.CatalogExpanded("samples") {
		t.Error("sibling branch should stay expanded")
	}
	if _, ok := c.Schemas("samples"); !ok {
		t.Error("sibling branch cache should be intact")
	}

	// Retry succeeds once the backend recovers.
	b.setFail("/api/catalogs/main/schemas", false)
	if expanded, err := c.ToggleCatalog(ctx, "main"); err != nil || !expanded {
		t.Errorf("retry: expanded=%v err=%v", expanded, err)
	}
}

func TestSelectTable_AlwaysFetchesAndReplaces(t *testing.T) {
	c, b := newTestCache(t)
	ctx := context.Background()

	d, err := c.SelectTable(ctx, "main", "sales", "orders")
	if err != nil {
		t.Fatalf("SelectTable: %v", err)
	}
	if d.FullName != "main.sales.orders" {
		t.Errorf("full name = %q", d.FullName)
	}
	key, active := c.ActiveDetail()
	if key != "main.sales.orders" || active != d {
		t.Errorf("active = %q %+v", key, active)
	}

	c.SelectTable(ctx, "main", "sales", "orders")
	if n := b.count("/api/catalogs/main/schemas/sales/tables/orders"); n != 2 {
		t.Errorf("detail fetched %d times, want 2", n)
	}

	c.SelectTable(ctx, "main", "sales", "revenue_daily")
	key, active = c.ActiveDetail()
	if key != "main.sales.revenue_daily" || active.FullName != "main.sales.revenue_daily" {
		t.Errorf("active after reselect = %q", key)
	}
}

func TestSelectTable_FailureKeepsPriorDetail(t *testing.T) {
	c, b := newTestCache(t)
	ctx := context.Background()

	c.SelectTable(ctx, "main", "sales", "orders")
	b.setFail("/api/catalogs/main/schemas/sales/tables/broken", true)
	if _, err := c.SelectTable(ctx, "main", "sales", "broken"); err == nil {
		t.Fatal("expected error")
	}
	key, _ := c.ActiveDetail()
	if key != "main.sales.orders" {
		t.Errorf("active = %q, want main.sales.orders", key)
	}
}

func TestVisible(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	c.LoadRoots(ctx)
	c.ToggleCatalog(ctx, "main")
	c.ToggleSchema(ctx, "main", "sales")

	nodes := c.Visible()
	var keys []string
	for _, n := range nodes {
		keys = append(keys, n.Key())
	}
	want := []string{"main", "main.sales", "main.sales.orders", "main.sales.revenue_daily", "main.default", "samples"}
	if len(keys) != len(want) {
		t.Fatalf("visible = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("node %d = %q, want %q", i, keys[i], want[i])
		}
	}
	if nodes[2].Badge != "DELTA" || nodes[3].Badge != "VIEW" {
		t.Errorf("badges = %q %q", nodes[2].Badge, nodes[3].Badge)
	}

	// Collapsing hides children but keeps the cache.
	c.ToggleCatalog(ctx, "main")
	if n := len(c.Visible()); n != 2 {
		t.Errorf("visible after collapse = %d, want 2", n)
	}
}

func TestSplitTableKey(t *testing.T) {
	c, s, tb, err := SplitTableKey("main.sales.orders")
	if err != nil || c != "main" || s != "sales" || tb != "orders" {
		t.Errorf("split = %q %q %q %v", c, s, tb, err)
	}
	for _, bad := range []string{"orders", "main.orders", "a..b", "a.b.c.d"} {
		if _, _, _, err := SplitTableKey(bad); err == nil {
			t.Errorf("SplitTableKey(%q) should fail", bad)
		}
	}
}

// gatedFetcher serves table detail in-process. A table listed in gates is
// held until its channel is closed.
type gatedFetcher struct {
	started chan string
	gates   map[string]chan struct{}
	delay   time.Duration

	mu    sync.Mutex
	calls int
}

func (f *gatedFetcher) ListCatalogs(ctx context.Context) (*remote.CatalogList, error) {
	return &remote.CatalogList{}, nil
}

func (f *gatedFetcher) ListSchemas(ctx context.Context, catalog string) ([]remote.Schema, error) {
	return nil, nil
}

func (f *gatedFetcher) ListTables(ctx context.Context, catalog, schema string) ([]remote.Table, error) {
	return nil, nil
}

func (f *gatedFetcher) TableDetail(ctx context.Context, catalog, schema, table string) (*remote.TableDetail, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- table
	}
	if gate, ok := f.gates[table]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	time.Sleep(f.delay)
	return &remote.TableDetail{Owner: "admin", Columns: []remote.Column{{Name: "id"}}}, nil
}

func TestSelectTable_JoinedCallersGetOwnCopy(t *testing.T) {
	f := &gatedFetcher{delay: 20 * time.Millisecond}
	c := New(f, slog.Default())

	details := make([]*remote.TableDetail, 4)
	errs := make([]error, len(details))
	var wg sync.WaitGroup
	for i := range details {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			details[i], errs[i] = c.SelectTable(context.Background(), "main", "sales", "orders")
		}(i)
	}
	wg.Wait()

	for i, d := range details {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if d.FullName != "main.sales.orders" {
			t.Errorf("call %d full name = %q", i, d.FullName)
		}
		for j := i + 1; j < len(details); j++ {
			if d == details[j] {
				t.Errorf("calls %d and %d share one detail", i, j)
			}
		}
	}

	details[0].Owner = "someone-else"
	details[0].Columns[0].Name = "changed"
	for i, d := range details[1:] {
		if d.Owner != "admin" || d.Columns[0].Name != "id" {
			t.Errorf("call %d sees another caller's change: %+v", i+1, d)
		}
	}
}

func TestSelectTable_LatestSelectionWins(t *testing.T) {
	f := &gatedFetcher{
		started: make(chan string, 2),
		gates:   map[string]chan struct{}{"orders": make(chan struct{})},
	}
	c := New(f, slog.Default())
	ctx := context.Background()

	type result struct {
		d   *remote.TableDetail
		err error
	}
	first := make(chan result, 1)
	go func() {
		d, err := c.SelectTable(ctx, "main", "sales", "orders")
		first <- result{d, err}
	}()
	if got := <-f.started; got != "orders" {
		t.Fatalf("first fetch = %q", got)
	}

	if _, err := c.SelectTable(ctx, "main", "sales", "customers"); err != nil {
		t.Fatalf("second select: %v", err)
	}
	<-f.started
	close(f.gates["orders"])
	r := <-first
	if r.err != nil || r.d == nil || r.d.FullName != "main.sales.orders" {
		t.Fatalf("first select = %+v, %v", r.d, r.err)
	}

	key, active := c.ActiveDetail()
	if key != "main.sales.customers" || active.FullName != "main.sales.customers" {
		t.Errorf("active = %q, want main.sales.customers", key)
	}
}

func TestSelectTable_JoinedCallerKeepsOwnDeadline(t *testing.T) {
	gate := make(chan struct{})
	f := &gatedFetcher{
		started: make(chan string, 1),
		gates:   map[string]chan struct{}{"orders": gate},
	}
	c := New(f, slog.Default())

	short, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.SelectTable(short, "main", "sales", "orders")
		firstErr <- err
	}()
	<-f.started

	second := make(chan error, 1)
	go func() {
		_, err := c.SelectTable(context.Background(), "main", "sales", "orders")
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller err = %v, want context.Canceled", err)
	}
	close(gate)
	if err := <-second; err != nil {
		t.Errorf("joined caller inherited cancellation: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls != 1 {
		t.Errorf("detail fetched %d times, want 1", f.calls)
	}
}

func TestLoadSchemas_FetchTimeout(t *testing.T) {
	c, b := newTestCache(t)
	c = New(c.client, slog.Default(), WithFetchTimeout(30*time.Millisecond))
	release := make(chan struct{})
	b.mu.Lock()
	b.release = release
	b.mu.Unlock()
	defer close(release)

	if _, err := c.LoadSchemas(context.Background(), "main"); err == nil {
		t.Fatal("expected the fetch to time out")
	}
	if _, ok := c.Schemas("main"); ok {
		t.Error("timed-out fetch must not populate cache")
	}
}
