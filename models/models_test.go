package models

import "testing"

func TestValidMeasurementType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value MeasurementType
		want  bool
	}{
		{"weight", MeasurementWeight, true},
		{"volume", MeasurementVolume, true},
		{"count", MeasurementCount, true},
		{"unknown", "length", false},
		{"empty", "", false},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidMeasurementType(tt.value); got != tt.want {
				t.Fatalf("ValidMeasurementType(%q) = %t, want %t", tt.value, got, tt.want)
			}
		})
	}
}

func TestJobStateTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[JobState]bool{
		JobPending:         false,
		JobRunning:         false,
		JobCompleted:       true,
		JobPartiallyFailed: true,
		JobCancelled:       true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %t, want %t", state, got, want)
		}
	}
}
