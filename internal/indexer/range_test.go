package indexer

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 6, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []CursorRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeUneven(t *testing.T) {
	got, err := SplitRange(0, 5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []CursorRange{{From: 0, To: 1}, {From: 2, To: 3}, {From: 4, To: 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
	if got[2].Size() != 1 {
		t.Fatalf("last page size = %d", got[2].Size())
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []CursorRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeEmpty(t *testing.T) {
	got, err := SplitRange(5, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no ranges, got %+v", got)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, -1, 1); err == nil {
		t.Fatalf("expected error for negative count")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero page size")
	}
}
