package market

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewTable_RejectsUnsortedDates(t *testing.T) {
	_, err := NewTable(
		[]time.Time{day(2024, 1, 3), day(2024, 1, 2)},
		[]string{"A"},
		[][]float64{{1}, {2}},
	)
	if !errors.Is(err, ErrUnsortedDates) {
		t.Fatalf("expected ErrUnsortedDates, got %v", err)
	}
}

func TestNewTable_RejectsRaggedRows(t *testing.T) {
	_, err := NewTable(
		[]time.Time{day(2024, 1, 2), day(2024, 1, 3)},
		[]string{"A", "B"},
		[][]float64{{1, 2}, {3}},
	)
	if !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestTable_BetweenAndIndex(t *testing.T) {
	table, err := NewTable(
		[]time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4), day(2024, 1, 5)},
		[]string{"A"},
		[][]float64{{1}, {2}, {3}, {4}},
	)
	if err != nil {
		t.Fatalf("NewTable returned error: %v", err)
	}

	if i, ok := table.Index(time.Date(2024, 1, 4, 16, 0, 0, 0, time.UTC)); !ok || i != 2 {
		t.Fatalf("expected index 2, got %d %v", i, ok)
	}

	view := table.Between(day(2024, 1, 3), day(2024, 1, 4))
	if view.Len() != 2 || view.Rows[0][0] != 2 || view.Rows[1][0] != 3 {
		t.Fatalf("unexpected view %+v", view.Rows)
	}

	open := table.Between(time.Time{}, day(2024, 1, 3))
	if open.Len() != 2 {
		t.Errorf("expected 2 rows up to end, got %d", open.Len())
	}
}

func TestTable_SelectReordersColumns(t *testing.T) {
	table, err := NewTable([]time.Time{day(2024, 1, 2)}, []string{"A", "B"}, [][]float64{{1, 2}})
	if err != nil {
		t.Fatalf("NewTable returned error: %v", err)
	}
	sel, err := table.Select([]string{"B", "A"})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if sel.Rows[0][0] != 2 || sel.Col("A") != 1 {
		t.Errorf("unexpected selection %+v", sel)
	}
	if _, err := table.Select([]string{"C"}); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestDailyReturns_FirstRowZero(t *testing.T) {
	prices, err := NewTable(
		[]time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)},
		[]string{"A", "B"},
		[][]float64{{100, 0}, {110, 5}, {99, 10}},
	)
	if err != nil {
		t.Fatalf("NewTable returned error: %v", err)
	}
	returns := DailyReturns(prices)

	if returns.Rows[0][0] != 0 || returns.Rows[0][1] != 0 {
		t.Errorf("first row should be zero, got %v", returns.Rows[0])
	}
	if math.Abs(returns.Rows[1][0]-0.1) > 1e-12 {
		t.Errorf("expected 10%% return, got %f", returns.Rows[1][0])
	}
	if math.Abs(returns.Rows[2][0]+0.1) > 1e-12 {
		t.Errorf("expected -10%% return, got %f", returns.Rows[2][0])
	}
	if !math.IsNaN(returns.Rows[1][1]) {
		t.Errorf("zero previous price should yield NaN, got %f", returns.Rows[1][1])
	}
	if math.Abs(returns.Rows[2][1]-1) > 1e-12 {
		t.Errorf("expected 100%% return, got %f", returns.Rows[2][1])
	}
}

func TestAlign_InnerJoinsDates(t *testing.T) {
	a := Series{
		Asset:  "A",
		Dates:  []time.Time{day(2024, 1, 4), day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 3)},
		Values: []float64{4, 2, 3, 3.5},
	}
	b := Series{
		Asset:  "B",
		Dates:  []time.Time{day(2024, 1, 3), day(2024, 1, 4), day(2024, 1, 5)},
		Values: []float64{30, math.NaN(), 50},
	}

	table, err := Align(a, b)
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected single common date, got %d", table.Len())
	}
	if !table.Dates[0].Equal(day(2024, 1, 3)) {
		t.Errorf("unexpected date %s", table.Dates[0])
	}
	if table.Rows[0][0] != 3.5 || table.Rows[0][1] != 30 {
		t.Errorf("duplicate date should keep last value, got %v", table.Rows[0])
	}
	if table.Assets[0] != "A" || table.Assets[1] != "B" {
		t.Errorf("column order should follow input, got %v", table.Assets)
	}
}

func TestAlign_NoCommonDates(t *testing.T) {
	a := Series{Asset: "A", Dates: []time.Time{day(2024, 1, 2)}, Values: []float64{1}}
	b := Series{Asset: "B", Dates: []time.Time{day(2024, 1, 3)}, Values: []float64{1}}
	if _, err := Align(a, b); err == nil {
		t.Fatalf("expected error when series do not overlap")
	}
}
