package model

import (
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{raw: "PENDING", want: StatusPending},
		{raw: "pd", want: StatusPending},
		{raw: "RUNNING", want: StatusRunning},
		{raw: " R ", want: StatusRunning},
		{raw: "COMPLETING", want: StatusCompleting},
		{raw: "CG", want: StatusCompleting},
		{raw: "COMPLETED", want: StatusCompleted},
		{raw: "FAILED", want: StatusFailed},
		{raw: "CANCELLED by 1234", want: StatusFailed},
		{raw: "TIMEOUT", want: StatusFailed},
		{raw: "OUT_OF_MEMORY", want: StatusFailed},
		{raw: "completed", want: StatusCompleted},
		{raw: "mystery", want: StatusUnknown},
		{raw: "", want: StatusUnknown},
	}

	for _, tt := range tests {
		if got := ParseStatus(tt.raw); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestStatusRank(t *testing.T) {
	order := []Status{StatusRunning, StatusCompleting, StatusPending, StatusFailed, StatusCompleted, StatusUnknown}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("%s rank %d should be below %s rank %d", order[i-1], order[i-1].Rank(), order[i], order[i].Rank())
		}
	}
	if Status("bogus").Rank() <= StatusUnknown.Rank() {
		t.Fatalf("unlisted status should rank after unknown")
	}
}

func TestSnapshotEqual(t *testing.T) {
	a := Snapshot{
		{ID: "1", Name: "train", Status: StatusRunning},
		{ID: "2", Name: "eval", Status: StatusPending},
	}

	tests := []struct {
		name  string
		other Snapshot
		want  bool
	}{
		{name: "identical", other: a.Clone(), want: true},
		{name: "reordered", other: Snapshot{a[1], a[0]}, want: false},
		{name: "shorter", other: Snapshot{a[0]}, want: false},
		{name: "field change", other: Snapshot{a[0], {ID: "2", Name: "eval", Status: StatusRunning}}, want: false},
		{name: "elapsed change", other: Snapshot{{ID: "1", Name: "train", Status: StatusRunning, Elapsed: "0:01"}, a[1]}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Equal(tt.other); got != tt.want {
				t.Fatalf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}

	var empty Snapshot
	if !empty.Equal(Snapshot{}) {
		t.Fatal("nil and empty snapshots should be equal")
	}
}

func TestJobDisplayName(t *testing.T) {
	if got := (Job{ID: "9", Name: " "}).DisplayName(); got != "9" {
		t.Fatalf("DisplayName() = %q, want %q", got, "9")
	}
	if got := (Job{ID: "9", Name: "train"}).DisplayName(); got != "train" {
		t.Fatalf("DisplayName() = %q, want %q", got, "train")
	}
}
