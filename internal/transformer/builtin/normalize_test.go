package builtin

import (
	"reflect"
	"testing"

	"h1b/pkg/records"
)

/*
TestNormalizeApply_TableDriven verifies Normalize.Apply:

  - Replaces U+00A0 NO-BREAK SPACE with an ASCII space.
  - Trims leading/trailing white space.
  - Applies changes in place.
*/
func TestNormalizeApply_TableDriven(t *testing.T) {
	tests := []struct {
		name string
		in   records.Record
		want records.Record
	}{
		{name: "untouched", in: records.Record{"a": "CA"}, want: records.Record{"a": "CA"}},
		{name: "trim", in: records.Record{"a": " CA\t"}, want: records.Record{"a": "CA"}},
		{name: "nbsp_edges", in: records.Record{"a": nbsp + "TX" + nbsp}, want: records.Record{"a": "TX"}},
		{name: "nbsp_inner", in: records.Record{"a": "DATA" + nbsp + "ANALYST"}, want: records.Record{"a": "DATA ANALYST"}},
		{name: "empty_stays_empty", in: records.Record{"a": ""}, want: records.Record{"a": ""}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := []records.Record{tc.in}
			out := Normalize{}.Apply(in)
			if !reflect.DeepEqual(out[0], tc.want) {
				t.Fatalf("got %#v; want %#v", out[0], tc.want)
			}
			if !reflect.DeepEqual(in[0], tc.want) {
				t.Fatalf("record not mutated in place: %#v", in[0])
			}
		})
	}
}
