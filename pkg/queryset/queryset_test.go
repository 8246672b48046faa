package queryset_test

import (
	"cmp"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/unbound-force/orderflake/pkg/queryset"
)

type row struct {
	ID    int
	Value string
}

func byValue(a, b row) int { return cmp.Compare(a.Value, b.Value) }

func seed(m *queryset.Manager[row], values ...string) {
	for i, v := range values {
		m.Create(row{ID: i + 1, Value: v})
	}
}

func TestAll_ReturnsEveryRow(t *testing.T) {
	widget := queryset.Register[row]("Widget")
	seed(widget.Objects, "c", "a", "b")

	rows := widget.Objects.All()
	if rows.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", rows.Len())
	}
	if rows.Ordered() {
		t.Error("unordered model reported Ordered() = true")
	}
	if rows.Source() != "Widget" {
		t.Errorf("Source() = %q", rows.Source())
	}

	var got []string
	for _, r := range rows.Values() {
		got = append(got, r.Value)
	}
	slices.Sort(got)
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("values = %v", got)
	}
}

func TestAll_OrderedModelSorts(t *testing.T) {
	article := queryset.Register("Article", queryset.OrderBy(byValue))
	seed(article.Objects, "c", "a", "b")

	if !article.Ordered() {
		t.Fatal("model registered with OrderBy must be ordered")
	}
	rows := article.Objects.All()
	if !rows.Ordered() {
		t.Error("Ordered() = false")
	}
	if rows.At(0).Value != "a" || rows.At(1).Value != "b" || rows.At(-1).Value != "c" {
		t.Errorf("rows = %v", rows.Values())
	}
}

func TestManagerOrderBy(t *testing.T) {
	widget := queryset.Register[row]("Widget")
	seed(widget.Objects, "b", "a")

	rows := widget.Objects.OrderBy(byValue)
	if !rows.Ordered() || rows.At(0).Value != "a" {
		t.Errorf("OrderBy result = %v, ordered=%v", rows.Values(), rows.Ordered())
	}
}

func TestAt_OutOfRangePanics(t *testing.T) {
	widget := queryset.Register[row]("Widget")
	seed(widget.Objects, "a")

	defer func() {
		if recover() == nil {
			t.Error("At(5) did not panic")
		}
	}()
	widget.Objects.All().At(5)
}

func TestFirst(t *testing.T) {
	widget := queryset.Register[row]("Widget")
	if _, ok := widget.Objects.All().First(); ok {
		t.Error("First() on empty result reported ok")
	}
	seed(widget.Objects, "a")
	if r, ok := widget.Objects.All().First(); !ok || r.Value != "a" {
		t.Errorf("First() = %v, %v", r, ok)
	}
}

func TestSlice(t *testing.T) {
	article := queryset.Register("Article", queryset.OrderBy(byValue))
	seed(article.Objects, "a", "b", "c", "d")

	tests := []struct {
		name   string
		lo, hi int
		want   []string
	}{
		{"middle", 1, 3, []string{"b", "c"}},
		{"clamped", -2, 10, []string{"a", "b", "c", "d"}},
		{"empty", 3, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range article.Objects.All().Slice(tt.lo, tt.hi).Values() {
				got = append(got, r.Value)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Slice(%d, %d) = %v, want %v", tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestInstrument(t *testing.T) {
	widget := queryset.Register[row]("Widget")
	seed(widget.Objects, "a", "b")
	rows := widget.Objects.All()

	type access struct {
		index any
		file  string
	}
	var seen []access
	restore, err := widget.Objects.Instrument(func(index any, recv queryset.Receiver, file string) {
		if recv.Source() != "Widget" {
			t.Errorf("receiver source = %q", recv.Source())
		}
		seen = append(seen, access{index, filepath.Base(file)})
	})
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}

	rows.At(1)
	rows.First()
	rows.Slice(0, 1)
	rows.Values()

	want := []access{
		{1, "queryset_test.go"},
		{0, "queryset.go"},
		{queryset.Span{Lo: 0, Hi: 1}, "queryset_test.go"},
	}
	if !slices.Equal(seen, want) {
		t.Errorf("accesses = %v\nwant       %v", seen, want)
	}

	if _, err := widget.Objects.Instrument(func(any, queryset.Receiver, string) {}); !errors.Is(err, queryset.ErrAlreadyInstrumented) {
		t.Errorf("second Instrument error = %v, want ErrAlreadyInstrumented", err)
	}

	restore()
	restore()
	if widget.Objects.Instrumented() {
		t.Error("hook still installed after restore")
	}
	rows.At(0)
	if len(seen) != len(want) {
		t.Error("hook called after restore")
	}
}

func TestInstrument_NilHook(t *testing.T) {
	widget := queryset.Register[row]("Widget")
	if _, err := widget.Objects.Instrument(nil); err == nil {
		t.Error("expected error for nil hook")
	}
}

func TestDelete(t *testing.T) {
	widget := queryset.Register[row]("Widget")
	seed(widget.Objects, "a", "b")
	widget.Objects.Delete()
	if widget.Objects.Count() != 0 {
		t.Errorf("Count() = %d after Delete", widget.Objects.Count())
	}
}
