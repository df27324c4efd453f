package cellvalue

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) Value {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("%s: %s", raw, err)
	}
	return FromAny(v)
}

func TestExtractNumber(t *testing.T) {
	inputsAndNumbers := map[string]float64{
		`10`:                                   10,
		`-2.5`:                                 -2.5,
		`"42"`:                                 42,
		`" 7.5 "`:                              7.5,
		`"abc"`:                                0,
		`""`:                                   0,
		`"NaN"`:                                0,
		`"inf"`:                                0,
		`null`:                                 0,
		`true`:                                 1,
		`false`:                                0,
		`[1, 2]`:                               0,
		`{"value": 3}`:                         3,
		`{"value": "4", "style": {"bold": 1}}`: 4,
		`{"value": {"value": "5"}}`:            5,
		`{"A1": {"value": 6, "style": {}}}`:    6,
		`{"A1": 7}`:                            7,
		`{"A1": {"B2": {"value": 8}}}`:         8,
		`{}`:                                   0,
		`{"a": 1, "b": 2}`:                     0,
		`{"value": null}`:                      0,
		`{"value": {"a": 1, "b": 2}}`:          0,
	}
	for input, expected := range inputsAndNumbers {
		actual := ExtractNumber(decode(t, input))
		if actual != expected {
			t.Errorf("%s: %v != %v", input, actual, expected)
		}
	}
}

func TestFromAnyShapes(t *testing.T) {
	if _, ok := decode(t, `{"value": 1, "style": {}}`).(*Wrapped); !ok {
		t.Error("object with value field should be Wrapped")
	}
	keyed, ok := decode(t, `{"A1": 1}`).(*Keyed)
	if !ok || keyed.Key != "A1" {
		t.Errorf("single-key object should be Keyed, got %#v", keyed)
	}
	if _, ok := decode(t, `{"a": 1, "b": 2}`).(Object); !ok {
		t.Error("multi-key object should be Object")
	}
	if _, ok := decode(t, `[1]`).(Null); !ok {
		t.Error("array should be Null")
	}
}

func TestExtractNumberDepthBound(t *testing.T) {
	var v Value = Number(9)
	for i := 0; i < MaxDepth; i++ {
		v = &Wrapped{Value: v}
	}
	if n := ExtractNumber(v); n != 9 {
		t.Errorf("%d wrappers: %v != 9", MaxDepth, n)
	}
	v = &Wrapped{Value: v}
	if n := ExtractNumber(v); n != 0 {
		t.Errorf("%d wrappers: %v != 0", MaxDepth+1, n)
	}
}

func TestExtractNumberCycle(t *testing.T) {
	w := &Wrapped{}
	k := &Keyed{Key: "A1", Value: w}
	w.Value = k
	if n := ExtractNumber(w); n != 0 {
		t.Errorf("cycle: %v != 0", n)
	}
}

func TestSheetRoundTrip(t *testing.T) {
	var sheet Sheet
	raw := `{"A1": {"value": "15", "style": {"bold": true}}, "B2": 3}`
	if err := json.Unmarshal([]byte(raw), &sheet); err != nil {
		t.Fatal(err)
	}
	if n := ExtractNumber(sheet["A1"]); n != 15 {
		t.Errorf("A1: %v != 15", n)
	}
	encoded, err := json.Marshal(sheet)
	if err != nil {
		t.Fatal(err)
	}
	var again Sheet
	if err := json.Unmarshal(encoded, &again); err != nil {
		t.Fatal(err)
	}
	w, ok := again["A1"].(*Wrapped)
	if !ok || w.Extra["style"] == nil {
		t.Errorf("style lost in %s", encoded)
	}
	if n := ExtractNumber(again["B2"]); n != 3 {
		t.Errorf("B2: %v != 3", n)
	}
}

func TestListRejectsNonArray(t *testing.T) {
	var l List
	if err := json.Unmarshal([]byte(`{"a": 1}`), &l); err == nil {
		t.Error("object should not decode as a list")
	}
}

func TestFormatNumber(t *testing.T) {
	numbersAndText := map[float64]string{
		15:      "15",
		-3.5:    "-3.5",
		0.1:     "0.1",
		1e21:    "1000000000000000000000",
		1234.25: "1234.25",
	}
	for n, expected := range numbersAndText {
		if actual := FormatNumber(n); actual != expected {
			t.Errorf("%v: %s != %s", n, actual, expected)
		}
	}
}
