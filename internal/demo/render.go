package demo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dqguardrail/guardrail/internal/remote"
)

// analysis is the heuristic analyzer output served in place of a model call.
type analysis struct {
	RootCauseAnalysis      string   `json:"root_cause_analysis"`
	PipelineHealth         string   `json:"pipeline_health"`
	RecommendedSQLFixes    string   `json:"recommended_sql_fixes"`
	RecommendedPythonFixes string   `json:"recommended_python_fixes"`
	DeltaOptimizations     []string `json:"delta_optimizations"`
	Summary                string   `json:"summary"`
	Score                  float64  `json:"score"`
	Issues                 int      `json:"issues"`
}

func analyze(res remote.QualityResults, source string) analysis {
	n := len(res.Issues)
	health := "Healthy"
	if n > 2 {
		health = "At Risk"
	}
	target := "table_name"
	if strings.Count(source, ".") == 2 {
		target = source
	}
	return analysis{
		RootCauseAnalysis:      fmt.Sprintf("Detected %d issues. Primary concerns involve null values and potential duplicates.", n),
		PipelineHealth:         health,
		RecommendedSQLFixes:    fmt.Sprintf("DELETE FROM %s WHERE id IS NULL;", target),
		RecommendedPythonFixes: "df = df.dropna(subset=['critical_col'])",
		DeltaOptimizations:     []string{"Run OPTIMIZE on the table", "Run VACUUM to remove old files"},
		Summary:                "Data quality is generally acceptable but requires attention to null handling.",
		Score:                  res.DQScore,
		Issues:                 n,
	}
}

func (a analysis) raw() remote.Analysis {
	data, _ := json.Marshal(a)
	return remote.NewAnalysis(data)
}

func renderReport(res remote.QualityResults, a analysis, at time.Time) string {
	var b strings.Builder
	b.WriteString("# Data Quality Assessment Report\n")
	fmt.Fprintf(&b, "**Date:** %s\n", at.Format(time.DateTime))
	fmt.Fprintf(&b, "**DQ Score:** %g\n\n", res.DQScore)

	b.WriteString("## Executive Summary\n")
	b.WriteString(a.Summary + "\n\n")

	b.WriteString("## Pipeline Health\n")
	fmt.Fprintf(&b, "**Status:** %s\n\n", a.PipelineHealth)

	b.WriteString("## Identified Issues\n")
	for _, issue := range res.Issues {
		fmt.Fprintf(&b, "- **%s** (%s): %s (Column: %s)\n", issue.Type, issue.Severity, issue.Details, issue.Column)
	}

	b.WriteString("\n## Root Cause Analysis\n")
	b.WriteString(a.RootCauseAnalysis + "\n\n")

	b.WriteString("## Recommendations\n")
	b.WriteString("### SQL Fixes\n```sql\n" + a.RecommendedSQLFixes + "\n```\n\n")
	b.WriteString("### Python Fixes\n```python\n" + a.RecommendedPythonFixes + "\n```\n")
	return b.String()
}

const commandSeparator = "# COMMAND ----------\n\n"

func renderNotebook(res remote.QualityResults, a analysis, target string) string {
	var b strings.Builder
	b.WriteString("# Databricks notebook source\n")
	b.WriteString("# MAGIC %md\n")
	b.WriteString("# # Auto-Generated Fix-It Notebook\n")
	fmt.Fprintf(&b, "# Generated based on DQ Score: %g\n\n", res.DQScore)

	b.WriteString(commandSeparator)
	b.WriteString("# MAGIC %md\n")
	b.WriteString("# MAGIC ## Analysis Summary\n")
	fmt.Fprintf(&b, "# MAGIC %s\n\n", a.Summary)

	b.WriteString(commandSeparator)
	b.WriteString("# MAGIC %sql\n")
	b.WriteString("# MAGIC -- Recommended SQL Fixes\n")
	fmt.Fprintf(&b, "# MAGIC %s\n\n", a.RecommendedSQLFixes)

	b.WriteString(commandSeparator)
	b.WriteString("# Recommended Python Fixes\n")
	b.WriteString(a.RecommendedPythonFixes + "\n\n")

	b.WriteString(commandSeparator)
	b.WriteString("# MAGIC %sql\n")
	b.WriteString("# MAGIC -- Delta Optimizations\n")
	for _, opt := range a.DeltaOptimizations {
		fmt.Fprintf(&b, "# MAGIC -- %s\n", opt)
		upper := strings.ToUpper(opt)
		if strings.Contains(upper, "OPTIMIZE") {
			fmt.Fprintf(&b, "# MAGIC OPTIMIZE %s;\n", target)
		}
		if strings.Contains(upper, "VACUUM") {
			fmt.Fprintf(&b, "# MAGIC VACUUM %s;\n", target)
		}
	}
	return b.String()
}
