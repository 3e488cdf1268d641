package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func TestParseGlobalID(t *testing.T) {
	cases := []struct {
		in   string
		want GlobalID
		typ  RecordType
	}{
		{"SA5", "SA5", RecordSample},
		{" ic12 ", "IC12", RecordContainer},
		{"SS1", "SS1", RecordSubsample},
		{"IT3", "IT3", RecordTemplate},
		{"BE7", "BE7", RecordWorkbench},
	}
	for _, tc := range cases {
		got, err := ParseGlobalID(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: expected %s, got %s", tc.in, tc.want, got)
		}
		typ, ok := got.RecordType()
		if !ok || typ != tc.typ {
			t.Fatalf("%s: expected type %s, got %s", got, tc.typ, typ)
		}
	}

	for _, bad := range []string{"", "SA", "XX5", "SA0", "SA-1", "SAx"} {
		if _, err := ParseGlobalID(bad); !errors.Is(err, ErrInvalidGlobalID) {
			t.Fatalf("parse %q: expected invalid global id, got %v", bad, err)
		}
	}
}

func TestGlobalIDParts(t *testing.T) {
	id := NewGlobalID(RecordSubsample, 42)
	if id != "SS42" || id.Prefix() != "SS" || id.Number() != 42 {
		t.Fatalf("unexpected parts of %s", id)
	}
	if GlobalID("S").Prefix() != "" || GlobalID("SAx").Number() != 0 {
		t.Fatalf("malformed ids must yield empty parts")
	}
}

func TestPersonFullName(t *testing.T) {
	if got := (Person{Username: "jdoe", FirstName: " Jane ", LastName: "Doe"}).FullName(); got != "Jane Doe" {
		t.Fatalf("unexpected full name %q", got)
	}
	if got := (Person{Username: "jdoe"}).FullName(); got != "jdoe" {
		t.Fatalf("expected username fallback, got %q", got)
	}
}

func TestGeoLocationValidate(t *testing.T) {
	ok := GeoLocation{Point: &GeoPoint{Latitude: decimal.RequireFromString("51.5"), Longitude: decimal.RequireFromString("-0.12")}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid point rejected: %v", err)
	}
	if ok.IsEmpty() {
		t.Fatalf("point location is not empty")
	}
	bad := GeoLocation{Box: &GeoBox{NorthEast: GeoPoint{Latitude: decimal.NewFromInt(91)}}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected latitude out of range")
	}
	if !(GeoLocation{PlaceName: "  "}).IsEmpty() {
		t.Fatalf("blank place name is empty")
	}
}

func TestGridLayout(t *testing.T) {
	g := GridLayout{Rows: 8, Columns: 12}
	if g.Capacity() != 96 {
		t.Fatalf("unexpected capacity %d", g.Capacity())
	}
	if !g.Contains(ParentLocation{CoordX: 12, CoordY: 8}) {
		t.Fatalf("corner cell must be inside")
	}
	if g.Contains(ParentLocation{CoordX: 13, CoordY: 1}) || g.Contains(ParentLocation{CoordX: 0, CoordY: 1}) {
		t.Fatalf("out of range cells must be outside")
	}
}

func TestContainerKinds(t *testing.T) {
	var nilContainer *Container
	if nilContainer.IsWorkbench() || nilContainer.IsGrid() {
		t.Fatalf("nil container has no kind")
	}
	grid := NewContainer(Base{GlobalID: "IC1", Name: "Rack"}, ContainerGrid, &GridLayout{Rows: 1, Columns: 1})
	if !grid.IsGrid() || grid.IsWorkbench() {
		t.Fatalf("expected grid container")
	}
	if NewContainer(Base{}, ContainerGrid, nil).IsGrid() {
		t.Fatalf("grid without layout is not usable as a grid")
	}
	if grid.String() != "Rack (IC1)" {
		t.Fatalf("unexpected string %q", grid.String())
	}
}
