package contracts

import "testing"

func TestRunState_CanTransition(t *testing.T) {
	tests := []struct {
		from RunState
		to   RunState
		want bool
	}{
		{StatePreparing, StateScanning, true},
		{StateScanning, StateConsolidating, true},
		{StateConsolidating, StateReportBuilding, true},
		{StateReportBuilding, StateDone, true},
		{StatePreparing, StateConsolidating, false},
		{StateScanning, StatePreparing, false},
		{StateScanning, StateScanning, false},
		{StatePreparing, StateFailed, true},
		{StateReportBuilding, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateFailed, StatePreparing, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.ShortName()+"->"+tt.to.ShortName(), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsValidState(t *testing.T) {
	for _, s := range AllStates() {
		if !IsValidState(string(s)) {
			t.Errorf("IsValidState(%s) = false", s)
		}
	}
	if !IsValidState("FAILED") {
		t.Error("IsValidState(FAILED) = false")
	}
	if IsValidState("S0_DATA_QUALITY") {
		t.Error("unknown state accepted")
	}
}
