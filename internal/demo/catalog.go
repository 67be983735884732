package demo

import "github.com/dqguardrail/guardrail/internal/remote"

var demoCatalogs = []remote.Catalog{
	{Name: "main", Comment: "Main catalog for production data"},
	{Name: "samples", Comment: "Sample datasets for testing"},
	{Name: "hive_metastore", Comment: "Legacy Hive metastore"},
}

var demoSchemas = map[string][]remote.Schema{
	"main": {
		{Name: "default", Comment: "Default schema"},
		{Name: "sales", Comment: "Sales data"},
		{Name: "customers", Comment: "Customer information"},
		{Name: "products", Comment: "Product catalog"},
	},
	"samples": {
		{Name: "nyctaxi", Comment: "NYC Taxi dataset"},
		{Name: "tpch", Comment: "TPC-H benchmark data"},
	},
	"hive_metastore": {
		{Name: "default", Comment: "Default Hive schema"},
	},
}

func managed(name string) remote.Table {
	return remote.Table{Name: name, TableType: "MANAGED", DataSourceFormat: "DELTA"}
}

func external(name string) remote.Table {
	return remote.Table{Name: name, TableType: "EXTERNAL", DataSourceFormat: "DELTA"}
}

var demoTables = map[string][]remote.Table{
	"main.sales": {
		managed("transactions"),
		managed("orders"),
		{Name: "revenue_daily", TableType: "VIEW"},
	},
	"main.customers": {managed("customer_info"), managed("customer_segments")},
	"main.products":  {managed("product_catalog"), managed("inventory")},
	"main.default":   {managed("sample_data")},
	"samples.nyctaxi": {external("trips"), external("zones")},
	"samples.tpch":    {external("orders"), external("lineitem"), external("customer")},
}

var demoColumns = []remote.Column{
	{Name: "id", TypeName: "LONG", Nullable: false},
	{Name: "created_at", TypeName: "TIMESTAMP", Nullable: false},
	{Name: "updated_at", TypeName: "TIMESTAMP", Nullable: true},
	{Name: "name", TypeName: "STRING", Nullable: true},
	{Name: "value", TypeName: "DOUBLE", Nullable: true},
	{Name: "category", TypeName: "STRING", Nullable: true},
	{Name: "is_active", TypeName: "BOOLEAN", Nullable: false},
}

// lookupTable returns the listed table entry, or false when the table is not
// part of the demo catalog.
func lookupTable(catalog, schema, table string) (remote.Table, bool) {
	for _, t := range demoTables[catalog+"."+schema] {
		if t.Name == table {
			return t, true
		}
	}
	return remote.Table{}, false
}

func tableDetail(catalog, schema, table string) *remote.TableDetail {
	t, _ := lookupTable(catalog, schema, table)
	d := &remote.TableDetail{
		FullName:         catalog + "." + schema + "." + table,
		Comment:          "Sample table in " + schema,
		TableType:        t.TableType,
		DataSourceFormat: t.DataSourceFormat,
		Owner:            "admin",
		Columns:          append([]remote.Column(nil), demoColumns...),
	}
	return d
}
