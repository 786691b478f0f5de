package contracts

import (
	"testing"
)

func mustCandidate(t *testing.T, id string, origin Origin, score int, tags ...string) Candidate {
	t.Helper()
	c, err := NewCandidate(CandidateParams{
		InstrumentID:   id,
		AsOf:           testDate,
		ReferencePrice: 50,
		Origin:         origin,
		Score:          score,
		Tags:           tags,
		StopReference:  floatPtr(float64(40 + score/10)),
		RiskPercent:    floatPtr(float64(score) / 10),
		Attributes:     map[string]interface{}{"seen_by": string(origin)},
	})
	if err != nil {
		t.Fatalf("NewCandidate(%s): %v", id, err)
	}
	return c
}

func TestMergeCandidates(t *testing.T) {
	a := mustCandidate(t, "NVDA", OriginMomentum, 60, "T1")
	b := mustCandidate(t, "NVDA", OriginStructural, 75, "T2")

	merged, err := MergeCandidates(a, b)
	if err != nil {
		t.Fatal(err)
	}

	if merged.Origin() != OriginConsolidated {
		t.Errorf("Origin() = %s, want consolidated", merged.Origin())
	}
	if merged.Score() != 75 {
		t.Errorf("Score() = %d, want 75", merged.Score())
	}
	if !merged.HasAllTags("T1", "T2") {
		t.Errorf("tags = %v, want T1 and T2", merged.Tags())
	}

	// stop/risk는 고득점 기여자(structural)에서
	wantStop, _ := b.StopReference()
	if stop, _ := merged.StopReference(); stop != wantStop {
		t.Errorf("StopReference() = %v, want %v", stop, wantStop)
	}
	wantRisk, _ := b.RiskPercent()
	if risk, _ := merged.RiskPercent(); risk != wantRisk {
		t.Errorf("RiskPercent() = %v, want %v", risk, wantRisk)
	}

	if v, _ := merged.Attribute(AttrOrigins); v != "momentum,structural" {
		t.Errorf("origins attribute = %v", v)
	}
	if v, _ := merged.Attribute("momentum.seen_by"); v != "momentum" {
		t.Errorf("contributor attribute missing: %v", merged.Attributes())
	}
	if s, ok := merged.OriginScore(OriginMomentum); !ok || s != 60 {
		t.Errorf("OriginScore(momentum) = %d, %v", s, ok)
	}
}

func TestMergeCandidates_VetoedContributorZeroesScore(t *testing.T) {
	high := mustCandidate(t, "JUMP", OriginMomentum, 90, "BREAKOUT")
	vetoed, err := NewCandidate(CandidateParams{
		InstrumentID:   "JUMP",
		AsOf:           testDate,
		ReferencePrice: 50,
		Origin:         OriginStructural,
		Score:          0,
		Tags:           []string{"CORPORATE_ACTION", "VOLUME_SPIKE"},
		Attributes:     map[string]interface{}{AttrVeto: "CORPORATE_ACTION"},
	})
	if err != nil {
		t.Fatal(err)
	}

	merged, err := MergeCandidates(high, vetoed)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Score() != 0 {
		t.Errorf("Score() = %d, want 0", merged.Score())
	}
	if !merged.HasAllTags("BREAKOUT", "CORPORATE_ACTION") {
		t.Errorf("Tags() = %v, want union", merged.Tags())
	}
	if got := merged.VetoTags(); len(got) != 1 || got[0] != "CORPORATE_ACTION" {
		t.Errorf("VetoTags() = %v, want [CORPORATE_ACTION]", got)
	}
	if s, ok := merged.OriginScore(OriginMomentum); !ok || s != 90 {
		t.Errorf("OriginScore(momentum) = %d, %v", s, ok)
	}

	// 재병합해도 veto 유지
	again, err := MergeCandidates(merged, mustCandidate(t, "JUMP", "gap", 95))
	if err != nil {
		t.Fatal(err)
	}
	if again.Score() != 0 || !again.IsVetoed() {
		t.Errorf("re-merge lost veto: score=%d vetoed=%v", again.Score(), again.IsVetoed())
	}
}

func TestMergeCandidates_TieUsesOriginOrder(t *testing.T) {
	a := mustCandidate(t, "AMD", OriginStructural, 70)
	b := mustCandidate(t, "AMD", OriginMomentum, 70)

	merged, err := MergeCandidates(a, b)
	if err != nil {
		t.Fatal(err)
	}
	// 동점이면 origin 이름 오름차순 (momentum < structural)
	wantStop, _ := b.StopReference()
	if stop, _ := merged.StopReference(); stop != wantStop {
		t.Errorf("StopReference() = %v, want momentum's %v", stop, wantStop)
	}
}

func TestMergeCandidates_Errors(t *testing.T) {
	a := mustCandidate(t, "AMD", OriginMomentum, 70)
	b := mustCandidate(t, "TSLA", OriginStructural, 70)
	c := mustCandidate(t, "AMD", OriginMomentum, 80)

	tests := []struct {
		name  string
		input []Candidate
	}{
		{"single contributor", []Candidate{a}},
		{"different instruments", []Candidate{a, b}},
		{"same origin twice", []Candidate{a, c}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MergeCandidates(tt.input...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSortCandidates(t *testing.T) {
	cands := []Candidate{
		mustCandidate(t, "B", OriginMomentum, 70),
		mustCandidate(t, "A", OriginMomentum, 70),
		mustCandidate(t, "C", OriginMomentum, 90),
	}

	SortCandidates(cands)

	want := []string{"C", "A", "B"}
	for i, id := range want {
		if cands[i].InstrumentID() != id {
			t.Errorf("position %d = %s, want %s", i, cands[i].InstrumentID(), id)
		}
	}
	if !IsRanked(cands) {
		t.Error("IsRanked() = false after sort")
	}
	if got := Truncate(cands, 2); len(got) != 2 {
		t.Errorf("Truncate(2) len = %d", len(got))
	}
	if got := Truncate(cands, 0); len(got) != 3 {
		t.Errorf("Truncate(0) len = %d, want unlimited", len(got))
	}
}
