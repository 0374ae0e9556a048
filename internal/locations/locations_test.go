package locations

import (
	"testing"

	"github.com/lox/siteweather/internal/models"
)

func ptr(f float64) *float64 { return &f }

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want string
	}{
		{"coordinates", Location{Lat: ptr(30.26715), Lon: ptr(-97.74306)}, "geo:30.27,-97.74"},
		{"coordinates win over zip", Location{Lat: ptr(30.2672), Lon: ptr(-97.7431), Zip: "78701"}, "geo:30.27,-97.74"},
		{"rounding half away from zero", Location{Lat: ptr(40.125), Lon: ptr(-74.125)}, "geo:40.13,-74.13"},
		{"negative zero normalized", Location{Lat: ptr(-0.001), Lon: ptr(0.001)}, "geo:0.00,0.00"},
		{"only latitude falls back to zip", Location{Lat: ptr(30.1), Zip: "78701"}, "zip:78701"},
		{"out of range coordinates fall back", Location{Lat: ptr(130), Lon: ptr(10), Zip: "78701"}, "zip:78701"},
		{"zip plus four", Location{Zip: " 78701-1234 "}, "zip:78701"},
		{"bad zip falls back to address", Location{Zip: "ABC", Address: "100 Congress Ave., Austin, TX"}, "addr:100 congress ave austin tx"},
		{"address whitespace", Location{Address: "  100   Congress\tAve  "}, "addr:100 congress ave"},
		{"nothing usable", Location{Address: " ,. "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.loc); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyDeterministic(t *testing.T) {
	l := Location{Lat: ptr(47.60621), Lon: ptr(-122.33207)}
	first := Key(l)
	for i := 0; i < 100; i++ {
		if got := Key(l); got != first {
			t.Fatalf("Key changed between calls: %q vs %q", got, first)
		}
	}
}

func TestDedupe(t *testing.T) {
	in := []Location{
		FromJobsite(models.Jobsite{ID: "j1", UserID: "u1", Latitude: ptr(30.2672), Longitude: ptr(-97.7431)}),
		FromUserProfile(models.UserProfile{ID: "u1", Zip: "78701"}),
		FromClient(models.Client{ID: "c1", UserID: "u2", Latitude: ptr(30.2701), Longitude: ptr(-97.7399)}),
		FromJobsite(models.Jobsite{ID: "j1", UserID: "u1", Latitude: ptr(30.2672), Longitude: ptr(-97.7431)}),
		FromJobsite(models.Jobsite{ID: "j2", UserID: "u2", Zip: "78701"}),
		FromClient(models.Client{ID: "c2", UserID: "u2"}),
	}

	groups := Dedupe(in)
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2: %+v", len(groups), groups)
	}

	geo := groups[0]
	if geo.Key != "geo:30.27,-97.74" {
		t.Errorf("groups[0].Key = %q", geo.Key)
	}
	wantSources := []string{"jobsite:j1", "client:c1"}
	if len(geo.Sources) != len(wantSources) {
		t.Fatalf("geo sources = %v, want %v", geo.Sources, wantSources)
	}
	for i := range wantSources {
		if geo.Sources[i] != wantSources[i] {
			t.Errorf("geo sources[%d] = %q, want %q", i, geo.Sources[i], wantSources[i])
		}
	}
	if len(geo.UserIDs) != 2 {
		t.Errorf("geo user IDs = %v, want [u1 u2]", geo.UserIDs)
	}
	if Query(geo) != "30.2672,-97.7431" {
		t.Errorf("Query(geo) = %q", Query(geo))
	}

	zip := groups[1]
	if zip.Key != "zip:78701" || len(zip.Sources) != 2 {
		t.Errorf("zip group = %+v", zip)
	}
	if Query(zip) != "78701" {
		t.Errorf("Query(zip) = %q", Query(zip))
	}
}

func TestDedupe_Empty(t *testing.T) {
	if got := Dedupe(nil); len(got) != 0 {
		t.Errorf("Dedupe(nil) = %v", got)
	}
}

func TestQuery_Address(t *testing.T) {
	g := Group{Key: "addr:1 main st", Address: "1 Main St, Springfield"}
	if got := Query(g); got != "1 Main St, Springfield" {
		t.Errorf("Query() = %q", got)
	}
}
