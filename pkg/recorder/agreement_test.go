package recorder_test

import (
	"go/token"
	"os"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/unbound-force/orderflake/internal/detector"
	"github.com/unbound-force/orderflake/internal/gosource"
	"github.com/unbound-force/orderflake/internal/syntax"
	"github.com/unbound-force/orderflake/pkg/recorder"
)

// The two tests below read the same rows in the same shape at run time
// that TestAgreement_StaticVerdicts lowers from this file.

func TestAgreement_FourRows(t *testing.T) {
	widget := newWidget(1, 2, 3, 4)
	tb := &fakeTB{name: "TestAgreement_FourRows"}

	r := recorder.Arm(tb, recorder.Watch(widget.Objects))
	rows := widget.Objects.All()
	if rows.At(0).Value != 1 {
		tb.Errorf("rows[0] = %d", rows.At(0).Value)
	}
	if rows.At(1).Value != 2 {
		tb.Errorf("rows[1] = %d", rows.At(1).Value)
	}
	if rows.At(2).Value != 3 {
		tb.Errorf("rows[2] = %d", rows.At(2).Value)
	}
	if rows.At(3).Value != 4 {
		tb.Errorf("rows[3] = %d", rows.At(3).Value)
	}
	tb.finish()

	if got := r.Indices(); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("Indices() = %v, want [0 1 2 3]", got)
	}
	if !reportedFlaky(tb) {
		t.Errorf("not reported as flaky, errors = %v", tb.errors)
	}
}

func TestAgreement_Rebound(t *testing.T) {
	widget := newWidget(1, 2, 3, 4)
	tb := &fakeTB{name: "TestAgreement_Rebound"}

	r := recorder.Arm(tb, recorder.Watch(widget.Objects))
	rows := widget.Objects.All()
	first := rows.At(0)
	second := rows.At(1)
	if first.Value != 1 {
		tb.Errorf("first = %d", first.Value)
	}
	if second.Value != 2 {
		tb.Errorf("second = %d", second.Value)
	}
	tb.finish()

	if got := r.Indices(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Indices() = %v, want [0 1]", got)
	}
	if !reportedFlaky(tb) {
		t.Errorf("not reported as flaky, errors = %v", tb.errors)
	}
}

// TestAgreement_StaticVerdicts runs the static detector over this file.
// The detector sees the four positions read through rows but does not
// follow values rebound to first and second, which the recorder does.
func TestAgreement_StaticVerdicts(t *testing.T) {
	_, path, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate test source")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gosource.ParseFile(token.NewFileSet(), path, src)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	tests := []struct {
		name    string
		flaky   bool
		indices []int
	}{
		{"TestAgreement_FourRows", true, []int{0, 1, 2, 3}},
		{"TestAgreement_Rebound", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, found := findUnit(f, tt.name)
			if !found {
				t.Fatalf("%s not lowered from %s", tt.name, path)
			}
			v := detector.Analyze(unit, detector.DefaultOptions())
			if v.Flaky != tt.flaky {
				t.Errorf("flaky = %v, want %v (usage %v)", v.Flaky, tt.flaky, v.Usage)
			}
			if got := v.DistinctIndices("rows"); !reflect.DeepEqual(got, tt.indices) {
				t.Errorf("indices = %v, want %v", got, tt.indices)
			}
		})
	}
}

func findUnit(f *syntax.File, name string) (syntax.TestUnit, bool) {
	for _, u := range f.Units {
		if u.Name == name {
			return u, true
		}
	}
	return syntax.TestUnit{}, false
}

func reportedFlaky(tb *fakeTB) bool {
	for _, e := range tb.errors {
		if strings.HasPrefix(e, "Possible flaky test detected in "+tb.name) {
			return true
		}
	}
	return false
}
