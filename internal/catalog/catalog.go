package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dqguardrail/guardrail/internal/remote"
)

// Fetcher is the subset of the backend API used by the cache.
type Fetcher interface {
	ListCatalogs(ctx context.Context) (*remote.CatalogList, error)
	ListSchemas(ctx context.Context, catalog string) ([]remote.Schema, error)
	ListTables(ctx context.Context, catalog, schema string) ([]remote.Table, error)
	TableDetail(ctx context.Context, catalog, schema, table string) (*remote.TableDetail, error)
}

// SchemaKey returns the composite key of a schema node.
func SchemaKey(catalog, schema string) string {
	return catalog + "." + schema
}

// TableKey returns the composite key of a table node.
func TableKey(catalog, schema, table string) string {
	return catalog + "." + schema + "." + table
}

// SplitTableKey splits "catalog.schema.table".
func SplitTableKey(key string) (catalog, schema, table string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid table name %q: expected catalog.schema.table", key)
	}
	return parts[0], parts[1], parts[2], nil
}

// Cache holds the lazily expanded catalog → schema → table tree. Children of
// a node are fetched at most once per session; concurrent requests for the
// same node share one in-flight fetch.
type Cache struct {
	client  Fetcher
	logger  *slog.Logger
	timeout time.Duration
	flight  singleflight.Group

	mu               sync.Mutex
	roots            []remote.Catalog
	rootsLoaded      bool
	mock             bool
	schemas          map[string][]remote.Schema
	tables           map[string][]remote.Table
	expandedCatalogs map[string]bool
	expandedSchemas  map[string]bool
	selected         string
	detail           *remote.TableDetail
	detailSeq        uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetchTimeout bounds each shared backend fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates an empty cache.
func New(client Fetcher, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		client:           client,
		logger:           logger,
		timeout:          remote.DefaultTimeout,
		schemas:          make(map[string][]remote.Schema),
		tables:           make(map[string][]remote.Table),
		expandedCatalogs: make(map[string]bool),
		expandedSchemas:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do runs fn once per key across concurrent callers. The shared fetch
// ignores the first caller's cancellation and is bounded by the cache
// timeout; each caller returns when its own ctx ends.
func (c *Cache) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (v any, shared bool, err error) {
	ch := c.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case r := <-ch:
		return r.Val, r.Shared, r.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// LoadRoots fetches the catalog list once. mock reports whether the server
// is returning demo data.
func (c *Cache) LoadRoots(ctx context.Context) (roots []remote.Catalog, mock bool, err error) {
	c.mu.Lock()
	if c.rootsLoaded {
		roots, mock = slices.Clone(c.roots), c.mock
		c.mu.Unlock()
		return roots, mock, nil
	}
	c.mu.Unlock()

	_, _, err = c.do(ctx, "roots", func(ctx context.Context) (any, error) {
		c.mu.Lock()
		loaded := c.rootsLoaded
		c.mu.Unlock()
		if loaded {
			return nil, nil
		}

		list, err := c.client.ListCatalogs(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.roots = list.Catalogs
		c.mock = list.Mock
		c.rootsLoaded = true
		c.mu.Unlock()
		if list.Mock {
			c.logger.Warn("catalog server returned demo data")
		}
		return nil, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("loading catalogs: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.roots), c.mock, nil
}

// ToggleCatalog flips the expanded flag of a catalog. Expanding a catalog
// whose schemas are not cached fetches them; on failure the flag is
// restored and the error returned.
func (c *Cache) ToggleCatalog(ctx context.Context, name string) (expanded bool, err error) {
	c.mu.Lock()
	was := c.expandedCatalogs[name]
	c.expandedCatalogs[name] = !was
	_, cached := c.schemas[name]
	c.mu.Unlock()

	if was || cached {
		return !was, nil
	}
	if _, err := c.LoadSchemas(ctx, name); err != nil {
		c.mu.Lock()
		c.expandedCatalogs[name] = was
		c.mu.Unlock()
		return was, err
	}
	return true, nil
}

// ToggleSchema flips the expanded flag of a schema, fetching its tables on
// first expansion.
func (c *Cache) ToggleSchema(ctx context.Context, catalog, schema string) (expanded bool, err error) {
	key := SchemaKey(catalog, schema)

	c.mu.Lock()
	was := c.expandedSchemas[key]
	c.expandedSchemas[key] = !was
	_, cached := c.tables[key]
	c.mu.Unlock()

	if was || cached {
		return !was, nil
	}
	if _, err := c.LoadTables(ctx, catalog, schema); err != nil {
		c.mu.Lock()
		c.expandedSchemas[key] = was
		c.mu.Unlock()
		return was, err
	}
	return true, nil
}

// LoadSchemas returns the schemas of a catalog, fetching them on first use.
func (c *Cache) LoadSchemas(ctx context.Context, catalog string) ([]remote.Schema, error) {
	if s, ok := c.Schemas(catalog); ok {
		return s, nil
	}
	_, shared, err := c.do(ctx, "schemas:"+catalog, func(ctx context.Context) (any, error) {
		if _, ok := c.Schemas(catalog); ok {
			return nil, nil
		}
		schemas, err := c.client.ListSchemas(ctx, catalog)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.schemas[catalog] = schemas
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		c.logger.Warn("fetching schemas failed", "catalog", catalog, "error", err)
		return nil, fmt.Errorf("loading schemas of %s: %w", catalog, err)
	}
	if shared {
		c.logger.Debug("joined in-flight schema fetch", "catalog", catalog)
	}
	s, _ := c.Schemas(catalog)
	return s, nil
}

// LoadTables returns the tables of a schema, fetching them on first use.
func (c *Cache) LoadTables(ctx context.Context, catalog, schema string) ([]remote.Table, error) {
	if t, ok := c.Tables(catalog, schema); ok {
		return t, nil
	}
	key := SchemaKey(catalog, schema)
	_, _, err := c.do(ctx, "tables:"+key, func(ctx context.Context) (any, error) {
		if _, ok := c.Tables(catalog, schema); ok {
			return nil, nil
		}
		tables, err := c.client.ListTables(ctx, catalog, schema)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables[key] = tables
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		c.logger.Warn("fetching tables failed", "schema", key, "error", err)
		return nil, fmt.Errorf("loading tables of %s: %w", key, err)
	}
	t, _ := c.Tables(catalog, schema)
	return t, nil
}

// SelectTable fetches fresh metadata for a table and makes it the active
// detail. Detail is never cached. When selections overlap, only the most
// recent one becomes active.
func (c *Cache) SelectTable(ctx context.Context, catalog, schema, table string) (*remote.TableDetail, error) {
	key := TableKey(catalog, schema, table)

	c.mu.Lock()
	c.detailSeq++
	token := c.detailSeq
	c.mu.Unlock()

	v, _, err := c.do(ctx, "detail:"+key, func(ctx context.Context) (any, error) {
		return c.client.TableDetail(ctx, catalog, schema, table)
	})
	if err != nil {
		c.logger.Warn("fetching table detail failed", "table", key, "error", err)
		return nil, fmt.Errorf("loading table %s: %w", key, err)
	}

	// Joined callers share v; each gets its own copy.
	detail := *v.(*remote.TableDetail)
	detail.Columns = slices.Clone(detail.Columns)
	if detail.FullName == "" {
		detail.FullName = key
	}

	c.mu.Lock()
	if token == c.detailSeq {
		c.selected = key
		c.detail = &detail
	} else {
		c.logger.Debug("discarding superseded table detail", "table", key)
	}
	c.mu.Unlock()
	return &detail, nil
}

// Roots returns the cached catalog list.
func (c *Cache) Roots() []remote.Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.roots)
}

// Mock reports whether the catalog list came from demo data.
func (c *Cache) Mock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mock
}

// Schemas returns the cached schemas of a catalog.
func (c *Cache) Schemas(catalog string) ([]remote.Schema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.schemas[catalog]
	return slices.Clone(s), ok
}

// Tables returns the cached tables of a schema.
func (c *Cache) Tables(catalog, schema string) ([]remote.Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[SchemaKey(catalog, schema)]
	return slices.Clone(t), ok
}

// CatalogExpanded reports whether a catalog node is expanded.
func (c *Cache) CatalogExpanded(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expandedCatalogs[name]
}

// SchemaExpanded reports whether a schema node is expanded.
func (c *Cache) SchemaExpanded(catalog, schema string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expandedSchemas[SchemaKey(catalog, schema)]
}

// ActiveDetail returns the selected table key and its detail.
func (c *Cache) ActiveDetail() (key string, detail *remote.TableDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.detail
}
