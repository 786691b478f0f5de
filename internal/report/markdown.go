package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// Core structural tags shown in the three-factor table
var coreFactorTags = []string{"VOLATILITY_EXPANSION", "VOLUME_SPIKE", "CLEAR_STRUCTURE"}

const (
	topCandidateRows = 20
	sectionRows      = 10
	ComparisonRows   = 15
)

// Recommended actions for the method comparison table
const (
	ActionDualWatch      = "Strong Watch (Dual Confirmed)"
	ActionTrendTrade     = "Trend Trade (Momentum Only)"
	ActionStructureTrade = "Structure Trade (Anomaly Only)"
	ActionMonitor        = "Monitor"
)

// RecommendedAction maps a momentum/structural score pair to an action
func RecommendedAction(momentum, structural int) string {
	switch {
	case momentum >= 80 && structural >= 60:
		return ActionDualWatch
	case momentum >= 85:
		return ActionTrendTrade
	case structural >= 70:
		return ActionStructureTrade
	default:
		return ActionMonitor
	}
}

// RenderMarkdown renders a Context as a markdown document.
// Reads only the Context; the output is deterministic for a given Context.
func RenderMarkdown(rc *Context) string {
	var b strings.Builder

	writeHeader(&b, rc)
	writeSummary(&b, rc)
	writeTopCandidates(&b, rc)
	writeMomentum(&b, rc)
	writeStructural(&b, rc)
	writeDualConfirmed(&b, rc)
	writeMethodComparison(&b, rc)
	writeValidations(&b, rc)
	writeErrors(&b, rc)
	writeFooter(&b, rc)

	return b.String()
}

func writeHeader(b *strings.Builder, rc *Context) {
	fmt.Fprintf(b, "# Daily Screening Report - %s (%s)\n\n",
		rc.AsOf().Format(contracts.DateLayout), rc.AsOf().Weekday())
	b.WriteString("**Mode**: Observation (No Trading)\n\n")
	fmt.Fprintf(b, "**Run**: `%s`\n\n", rc.RunID())
	fmt.Fprintf(b, "**Strategy**: `%s`\n\n", rc.TaxonomyVersion())
	fmt.Fprintf(b, "**Generated**: %s\n\n", rc.GeneratedAt().Format("2006-01-02 15:04:05 MST"))
	b.WriteString("---\n\n")
}

func writeSummary(b *strings.Builder, rc *Context) {
	stats := rc.Stats()
	cands := rc.Candidates()

	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(b, "- **Instruments Scanned**: %d\n", stats.InstrumentsScanned)
	for _, s := range rc.Scanners() {
		fmt.Fprintf(b, "- **%s Candidates**: %d\n", title(string(s.Origin)), len(s.Candidates))
	}
	fmt.Fprintf(b, "- **Consolidated Candidates**: %d\n", len(cands))
	fmt.Fprintf(b, "- **Dual Confirmed**: %d\n", countDual(cands))
	fmt.Fprintf(b, "- **Deep Validations**: %d\n", len(rc.Validations()))
	fmt.Fprintf(b, "- **Soft Errors**: %d\n\n", len(stats.Errors))
}

func writeTopCandidates(b *strings.Builder, rc *Context) {
	cands := rc.Candidates()

	b.WriteString("---\n\n## 1. Top Candidates\n\n")
	if len(cands) == 0 {
		b.WriteString("*No candidates today.*\n\n")
		return
	}

	b.WriteString("| Rank | Instrument | Score | Origin | Tags | Close | Stop | Risk % |\n")
	b.WriteString("|------|------------|-------|--------|------|-------|------|--------|\n")
	for i, c := range cands {
		if i >= topCandidateRows {
			break
		}
		fmt.Fprintf(b, "| %d | **%s** | %d | %s | %s | %.2f | %s | %s |\n",
			i+1, c.InstrumentID(), c.Score(), strings.Join(c.SourceOrigins(), "+"),
			joinTags(c.Tags()), c.ReferencePrice(), stopCell(c), riskCell(c))
	}
	if len(cands) > topCandidateRows {
		fmt.Fprintf(b, "\n*%d more candidates in the JSON context.*\n", len(cands)-topCandidateRows)
	}
	b.WriteString("\n")
}

func writeMomentum(b *strings.Builder, rc *Context) {
	out := rc.Scanner(contracts.OriginMomentum)

	b.WriteString("---\n\n## 2. Momentum Opportunities\n\n")
	fmt.Fprintf(b, "*Sustained trend with confirming volume (Score >= %d)*\n\n", out.MinScore)
	if len(out.Candidates) == 0 {
		b.WriteString("*No momentum opportunities found today.*\n\n")
		return
	}

	b.WriteString("| Rank | Instrument | Score | Tags | Momentum 20D | Close | Stop |\n")
	b.WriteString("|------|------------|-------|------|--------------|-------|------|\n")
	for i, c := range out.Candidates {
		if i >= sectionRows {
			break
		}
		fmt.Fprintf(b, "| %d | **%s** | %d | %s | %s | %.2f | %s |\n",
			i+1, c.InstrumentID(), c.Score(), joinTags(c.Tags()),
			percentAttr(c, contracts.FeatureMomentum20D), c.ReferencePrice(), stopCell(c))
	}
	b.WriteString("\n")
}

func writeStructural(b *strings.Builder, rc *Context) {
	out := rc.Scanner(contracts.OriginStructural)

	b.WriteString("---\n\n## 3. Structural Anomalies\n\n")
	b.WriteString("**Principle**: no direction forecast, only structure worth risking -1R\n\n")
	if len(out.Candidates) == 0 {
		b.WriteString("*No anomalies detected today.*\n\n")
		return
	}

	b.WriteString("### Core 3-Factor Signals\n\n")
	core := make([]contracts.Candidate, 0)
	for _, c := range out.Candidates {
		if c.HasAllTags(coreFactorTags...) {
			core = append(core, c)
		}
	}
	if len(core) == 0 {
		b.WriteString("*No instruments with all 3 core factors today.*\n\n")
	} else {
		b.WriteString("| Instrument | Score | Stop | Risk % | Close |\n")
		b.WriteString("|------------|-------|------|--------|-------|\n")
		for i, c := range core {
			if i >= sectionRows {
				break
			}
			fmt.Fprintf(b, "| **%s** | %d | %s | %s | %.2f |\n",
				c.InstrumentID(), c.Score(), stopCell(c), riskCell(c), c.ReferencePrice())
		}
		fmt.Fprintf(b, "\n**Count**: %d instruments with all 3 factors aligned\n\n", len(core))
	}

	b.WriteString("### Tag Distribution\n\n")
	for _, tc := range tagCounts(out.Candidates) {
		fmt.Fprintf(b, "- %s: %d\n", tc.tag, tc.count)
	}
	b.WriteString("\n")
}

func writeDualConfirmed(b *strings.Builder, rc *Context) {
	type row struct {
		id                   string
		momentum, structural int
	}
	rows := make([]row, 0)
	for _, c := range rc.Candidates() {
		m, okM := c.OriginScore(contracts.OriginMomentum)
		s, okS := c.OriginScore(contracts.OriginStructural)
		if okM && okS && m >= 80 && s >= 60 {
			rows = append(rows, row{c.InstrumentID(), m, s})
		}
	}
	if len(rows) == 0 {
		return
	}

	b.WriteString("### Dual Confirmed Signals\n\n")
	b.WriteString("*Momentum >= 80 AND structural >= 60*\n\n")
	b.WriteString("| Instrument | Momentum Score | Structural Score | Status |\n")
	b.WriteString("|------------|----------------|------------------|--------|\n")
	for i, r := range rows {
		if i >= sectionRows {
			break
		}
		status := "Good"
		if r.structural >= 80 {
			status = "Strong"
		}
		fmt.Fprintf(b, "| **%s** | %d | %d | %s |\n", r.id, r.momentum, r.structural, status)
	}
	fmt.Fprintf(b, "\n**Count**: %d dual-confirmed instruments\n\n", len(rows))
}

// ComparisonRow is one line of the method comparison table
type ComparisonRow struct {
	InstrumentID string
	Momentum     int
	Structural   int
	Action       string
}

// MethodComparison pairs each instrument's momentum and structural scores.
// Rows need momentum >= 70 or structural >= 60 and are ordered by combined
// score, then the weaker score, then instrument id.
func MethodComparison(rc *Context) []ComparisonRow {
	mom := scoreMap(rc.Scanner(contracts.OriginMomentum).Candidates)
	st := scoreMap(rc.Scanner(contracts.OriginStructural).Candidates)
	if len(mom) == 0 || len(st) == 0 {
		return []ComparisonRow{}
	}

	seen := make(map[string]struct{})
	rows := make([]ComparisonRow, 0)
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		m, s := mom[id], st[id]
		if m >= 70 || s >= 60 {
			rows = append(rows, ComparisonRow{InstrumentID: id, Momentum: m, Structural: s, Action: RecommendedAction(m, s)})
		}
	}
	for id := range mom {
		add(id)
	}
	for id := range st {
		add(id)
	}

	sort.Slice(rows, func(i, j int) bool {
		si, sj := rows[i].Momentum+rows[i].Structural, rows[j].Momentum+rows[j].Structural
		if si != sj {
			return si > sj
		}
		mi, mj := minInt(rows[i].Momentum, rows[i].Structural), minInt(rows[j].Momentum, rows[j].Structural)
		if mi != mj {
			return mi > mj
		}
		return rows[i].InstrumentID < rows[j].InstrumentID
	})
	return rows
}

func writeMethodComparison(b *strings.Builder, rc *Context) {
	rows := MethodComparison(rc)
	if len(rows) == 0 {
		return
	}

	b.WriteString("### Method Comparison: Momentum vs Structural\n\n")
	b.WriteString("| Instrument | Momentum | Structural | Recommended Action |\n")
	b.WriteString("|------------|----------|------------|--------------------|\n")
	for i, r := range rows {
		if i >= ComparisonRows {
			break
		}
		fmt.Fprintf(b, "| **%s** | %d | %d | %s |\n", r.InstrumentID, r.Momentum, r.Structural, r.Action)
	}
	b.WriteString("\n")
}

func writeValidations(b *strings.Builder, rc *Context) {
	results := rc.Validations()

	b.WriteString("---\n\n## 4. Deep Validation\n\n")
	if len(results) == 0 {
		b.WriteString("*No deep validation results attached.*\n\n")
		return
	}

	b.WriteString("| Instrument | Event | Status | Forward Bars | Detail |\n")
	b.WriteString("|------------|-------|--------|--------------|--------|\n")
	for _, r := range results {
		fmt.Fprintf(b, "| **%s** | %s | %s | %d | %s |\n",
			r.InstrumentID, r.EventTag, r.Status, r.ForwardBars, r.Detail)
	}
	b.WriteString("\n")
}

func writeErrors(b *strings.Builder, rc *Context) {
	errs := rc.Errors()
	if len(errs) == 0 {
		return
	}

	b.WriteString("---\n\n## Errors Encountered\n\n")
	for _, e := range errs {
		if e.InstrumentID != "" {
			fmt.Fprintf(b, "- `%s` %s/%s: %s\n", e.Kind, e.Source, e.InstrumentID, e.Message)
		} else {
			fmt.Fprintf(b, "- `%s` %s: %s\n", e.Kind, e.Source, e.Message)
		}
	}
	b.WriteString("\n")
}

func writeFooter(b *strings.Builder, rc *Context) {
	b.WriteString("---\n\n## Run Stages\n\n")
	stages := rc.Stages()
	if len(stages) == 0 {
		b.WriteString("*No stage timings recorded.*\n\n")
	} else {
		b.WriteString("| State | In | Out | Duration (ms) |\n")
		b.WriteString("|-------|----|-----|---------------|\n")
		for _, s := range stages {
			fmt.Fprintf(b, "| %s | %d | %d | %d |\n", s.State, s.InputCount, s.OutputCount, s.Duration)
		}
		b.WriteString("\n")
	}
	b.WriteString("*Report generated by the daily screener*\n")
}

type tagCount struct {
	tag   string
	count int
}

func tagCounts(cands []contracts.Candidate) []tagCount {
	counts := make(map[string]int)
	for _, c := range cands {
		for _, t := range c.Tags() {
			counts[t]++
		}
	}
	out := make([]tagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, tagCount{t, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].tag < out[j].tag
	})
	return out
}

func scoreMap(cands []contracts.Candidate) map[string]int {
	m := make(map[string]int, len(cands))
	for _, c := range cands {
		m[c.InstrumentID()] = c.Score()
	}
	return m
}

func countDual(cands []contracts.Candidate) int {
	n := 0
	for _, c := range cands {
		if len(c.SourceOrigins()) > 1 {
			n++
		}
	}
	return n
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ", ")
}

func stopCell(c contracts.Candidate) string {
	if v, ok := c.StopReference(); ok {
		return fmt.Sprintf("%.2f", v)
	}
	return "-"
}

func riskCell(c contracts.Candidate) string {
	if v, ok := c.RiskPercent(); ok {
		return fmt.Sprintf("%.1f%%", v)
	}
	return "-"
}

func percentAttr(c contracts.Candidate, key string) string {
	v, ok := c.Attribute(key)
	if !ok {
		return "-"
	}
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%+.2f%%", n)
	case int:
		return fmt.Sprintf("%+d%%", n)
	default:
		return fmt.Sprint(v)
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
