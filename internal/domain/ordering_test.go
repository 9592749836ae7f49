package domain

import "testing"

func TestSortRecords(t *testing.T) {
	records := []*CanonicalRecord{
		{ID: "b", Timestamp: 2},
		{ID: "c", Timestamp: 1},
		{ID: "a", Timestamp: 2},
	}

	SortRecords(records)

	wantIDs := []string{"c", "a", "b"}
	for i, r := range records {
		if r.ID != wantIDs[i] {
			t.Errorf("position %d: id = %s, want %s", i, r.ID, wantIDs[i])
		}
	}
}
