package catalog

// NodeKind is the level of a tree node.
type NodeKind string

const (
	KindCatalog NodeKind = "catalog"
	KindSchema  NodeKind = "schema"
	KindTable   NodeKind = "table"
)

// Node is one visible row of the catalog tree.
type Node struct {
	Kind     NodeKind
	Catalog  string
	Schema   string
	Table    string
	Depth    int
	Expanded bool
	// Badge is the table format, falling back to the table type.
	Badge string
}

// Key returns the composite dotted key of the node.
func (n Node) Key() string {
	switch n.Kind {
	case KindSchema:
		return SchemaKey(n.Catalog, n.Schema)
	case KindTable:
		return TableKey(n.Catalog, n.Schema, n.Table)
	default:
		return n.Catalog
	}
}

// Name returns the node's own name.
func (n Node) Name() string {
	switch n.Kind {
	case KindSchema:
		return n.Schema
	case KindTable:
		return n.Table
	default:
		return n.Catalog
	}
}

// Visible flattens the tree into rows in display order. Children show only
// when their parent is expanded and cached.
func (c *Cache) Visible() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	var nodes []Node
	for _, cat := range c.roots {
		catExpanded := c.expandedCatalogs[cat.Name]
		nodes = append(nodes, Node{Kind: KindCatalog, Catalog: cat.Name, Expanded: catExpanded})
		if !catExpanded {
			continue
		}
		for _, s := range c.schemas[cat.Name] {
			key := SchemaKey(cat.Name, s.Name)
			schemaExpanded := c.expandedSchemas[key]
			nodes = append(nodes, Node{Kind: KindSchema, Catalog: cat.Name, Schema: s.Name, Depth: 1, Expanded: schemaExpanded})
			if !schemaExpanded {
				continue
			}
			for _, t := range c.tables[key] {
				badge := t.DataSourceFormat
				if badge == "" {
					badge = t.TableType
				}
				nodes = append(nodes, Node{
					Kind:    KindTable,
					Catalog: cat.Name,
					Schema:  s.Name,
					Table:   t.Name,
					Depth:   2,
					Badge:   badge,
				})
			}
		}
	}
	return nodes
}
