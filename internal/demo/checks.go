package demo

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/dqguardrail/guardrail/internal/remote"
)

// dataset is a small in-memory table. A nil cell is a null.
type dataset struct {
	columns []string
	numeric map[string]bool
	rows    [][]any
}

// sampleDataset mirrors the bundled sample file: 100 rows, every tenth
// value null, with the first five rows duplicated.
func sampleDataset() *dataset {
	ds := &dataset{
		columns: []string{"id", "value", "category", "timestamp"},
		numeric: map[string]bool{"id": true, "value": true},
	}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	categories := []string{"A", "B", "C", "A"}
	for i := 0; i < 100; i++ {
		var value any = float64(i)
		if i%10 == 0 {
			value = nil
		}
		ds.rows = append(ds.rows, []any{float64(i), value, categories[i%4], start.AddDate(0, 0, i).Format(time.DateOnly)})
	}
	ds.rows = append(ds.rows, ds.rows[:5]...)
	return ds
}

// tableDataset synthesizes rows for a catalog table. The null rates and
// duplicate count are derived from the table name so repeated scans of one
// table agree.
func tableDataset(fullName string, columns []remote.Column) *dataset {
	h := fnv.New32a()
	h.Write([]byte(fullName))
	seed := h.Sum32()

	ds := &dataset{numeric: make(map[string]bool)}
	for _, c := range columns {
		ds.columns = append(ds.columns, c.Name)
		switch strings.ToUpper(c.TypeName) {
		case "LONG", "INT", "BIGINT", "DOUBLE", "FLOAT", "DECIMAL":
			ds.numeric[c.Name] = true
		}
	}

	const rowCount = 200
	for i := 0; i < rowCount; i++ {
		row := make([]any, len(columns))
		for j, c := range columns {
			nullEvery := 0
			if c.Nullable {
				// 0 disables nulls; small values give high null ratios.
				nullEvery = int((seed >> (uint(j) * 3)) % 12)
			}
			if nullEvery > 0 && i%nullEvery == 0 {
				continue
			}
			row[j] = cellValue(c, i)
		}
		ds.rows = append(ds.rows, row)
	}
	dups := int(seed % 7)
	ds.rows = append(ds.rows, ds.rows[:dups]...)
	return ds
}

func cellValue(c remote.Column, i int) any {
	switch strings.ToUpper(c.TypeName) {
	case "LONG", "INT", "BIGINT":
		return float64(i)
	case "DOUBLE", "FLOAT", "DECIMAL":
		return float64(i%37) * 1.5
	case "BOOLEAN":
		return i%3 != 0
	case "TIMESTAMP", "DATE":
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
	default:
		return fmt.Sprintf("%s_%d", c.Name, i%25)
	}
}

// profile runs the quality checks and scores the dataset. Each issue costs
// five points.
func profile(ds *dataset) remote.QualityResults {
	res := remote.QualityResults{RowCount: int64(len(ds.rows))}
	n := float64(len(ds.rows))

	for j, col := range ds.columns {
		nulls := 0
		for _, row := range ds.rows {
			if row[j] == nil {
				nulls++
			}
		}
		if n == 0 {
			continue
		}
		ratio := float64(nulls) / n
		if ratio > 0.05 {
			sev := remote.SeverityMedium
			if ratio > 0.2 {
				sev = remote.SeverityHigh
			}
			res.Issues = append(res.Issues, remote.Issue{
				Type:     "High Null Ratio",
				Severity: sev,
				Column:   col,
				Details:  fmt.Sprintf("%.1f%% of values are null.", ratio*100),
			})
		}
	}

	if dups := duplicateRows(ds); dups > 0 {
		res.Issues = append(res.Issues, remote.Issue{
			Type:     "Duplicate Rows",
			Severity: remote.SeverityHigh,
			Column:   "All",
			Details:  fmt.Sprintf("Found %d duplicate rows.", dups),
		})
	}

	for j, col := range ds.columns {
		if !ds.numeric[col] || len(ds.rows) < 2 {
			continue
		}
		if stddev(ds, j) == 0 {
			res.Issues = append(res.Issues, remote.Issue{
				Type:     "Zero Variance",
				Severity: remote.SeverityLow,
				Column:   col,
				Details:  "Column has constant value.",
			})
		}
	}

	res.DQScore = math.Max(0, 100-float64(len(res.Issues))*5)
	return res
}

func duplicateRows(ds *dataset) int {
	seen := make(map[string]bool, len(ds.rows))
	dups := 0
	for _, row := range ds.rows {
		key := fmt.Sprintf("%#v", row)
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
	}
	return dups
}

func stddev(ds *dataset, j int) float64 {
	var sum, sq float64
	count := 0
	for _, row := range ds.rows {
		v, ok := row[j].(float64)
		if !ok {
			continue
		}
		sum += v
		sq += v * v
		count++
	}
	if count < 2 {
		return 0
	}
	mean := sum / float64(count)
	return math.Sqrt(math.Max(0, sq/float64(count)-mean*mean))
}
