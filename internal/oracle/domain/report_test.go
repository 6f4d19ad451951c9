package oracle

import "testing"

func TestWithinWindow_Boundaries(t *testing.T) {
	current := uint64(1000)

	if WithinWindow(current, current) {
		t.Fatal("current height must be rejected as not yet final")
	}
	if !WithinWindow(current, current-1) {
		t.Fatal("previous height must be accepted")
	}
	if !WithinWindow(current, current-ReportWindowBlocks) {
		t.Fatal("oldest in-window height must be accepted")
	}
	if WithinWindow(current, current-ReportWindowBlocks-1) {
		t.Fatal("height beyond the window must be rejected as stale")
	}
	if WithinWindow(current, current+1) {
		t.Fatal("future height must be rejected")
	}
}

func TestPlausibilityCeiling(t *testing.T) {
	// 5 kW over 10 elapsed hours: 5*6*10 = 300 kWh ceiling.
	got := PlausibilityCeiling(5, 110, 100)
	want := uint64(300) * MicroUnitsPerKwh
	if got != want {
		t.Fatalf("ceiling = %d, want %d", got, want)
	}

	if PlausibilityCeiling(5, 100, 100) != 0 {
		t.Fatal("zero elapsed time must yield zero ceiling")
	}
	if PlausibilityCeiling(0, 110, 100) != 0 {
		t.Fatal("zero capacity must yield zero ceiling")
	}
}

func TestKwhFromMicroUnits_Truncates(t *testing.T) {
	if got := KwhFromMicroUnits(1_999_999); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	if got := KwhFromMicroUnits(999_999); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
	if got := KwhFromMicroUnits(200_000_000); got != 200 {
		t.Fatalf("got %d, want 200", got)
	}
}
