// Package locations turns the addresses scattered across jobsites, user
// profiles and clients into a deduplicated set of places to fetch weather
// for.
package locations

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lox/siteweather/internal/models"
)

type Source string

const (
	SourceJobsite Source = "jobsite"
	SourceProfile Source = "profile"
	SourceClient  Source = "client"
)

// Location is one place record as it appears in the database.
type Location struct {
	Source   Source
	SourceID string
	UserID   string
	Lat      *float64
	Lon      *float64
	Zip      string
	Address  string
}

// Ref identifies the record a location came from, as "source:id".
func (l Location) Ref() string {
	return string(l.Source) + ":" + l.SourceID
}

func FromJobsite(j models.Jobsite) Location {
	return Location{Source: SourceJobsite, SourceID: j.ID, UserID: j.UserID, Lat: j.Latitude, Lon: j.Longitude, Zip: j.Zip, Address: j.Address}
}

func FromUserProfile(p models.UserProfile) Location {
	return Location{Source: SourceProfile, SourceID: p.ID, UserID: p.ID, Lat: p.Latitude, Lon: p.Longitude, Zip: p.Zip, Address: p.Address}
}

func FromClient(c models.Client) Location {
	return Location{Source: SourceClient, SourceID: c.ID, UserID: c.UserID, Lat: c.Latitude, Lon: c.Longitude, Zip: c.Zip, Address: c.Address}
}

var (
	zipPattern  = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// Key derives the dedup key: rounded coordinates when both are present and
// valid, else the 5-digit zip, else the normalized address. Records with
// none of these yield "".
func Key(l Location) string {
	if lat, lon, ok := coords(l); ok {
		return fmt.Sprintf("geo:%.2f,%.2f", round2(lat), round2(lon))
	}
	if zip := normalizeZip(l.Zip); zip != "" {
		return "zip:" + zip
	}
	if addr := NormalizeAddress(l.Address); addr != "" {
		return "addr:" + addr
	}
	return ""
}

func coords(l Location) (lat, lon float64, ok bool) {
	if l.Lat == nil || l.Lon == nil {
		return 0, 0, false
	}
	lat, lon = *l.Lat, *l.Lon
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// round2 rounds half away from zero so the key does not depend on the
// formatting verb's rounding mode. Negative zero is normalized.
func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}

func normalizeZip(zip string) string {
	zip = strings.TrimSpace(zip)
	if !zipPattern.MatchString(zip) {
		return ""
	}
	return zip[:5]
}

// NormalizeAddress lowercases, strips punctuation and collapses whitespace.
func NormalizeAddress(addr string) string {
	addr = punctuation.ReplaceAllString(strings.ToLower(addr), " ")
	return strings.Join(strings.Fields(addr), " ")
}

// Group is one deduplicated location with every record that maps to it.
type Group struct {
	Key     string   `json:"key"`
	Lat     *float64 `json:"latitude,omitempty"`
	Lon     *float64 `json:"longitude,omitempty"`
	Zip     string   `json:"zip,omitempty"`
	Address string   `json:"address,omitempty"`
	Sources []string `json:"sources"`
	UserIDs []string `json:"userIds"`
}

// Dedupe merges locations sharing a key in a single pass. Groups keep
// first-seen order and take their query fields from the first record;
// sources and user IDs are merged without duplicates. Records without a
// usable key are dropped.
func Dedupe(ls []Location) []Group {
	var groups []Group
	index := make(map[string]int, len(ls))
	seenRef := make(map[string]bool, len(ls))

	for _, l := range ls {
		key := Key(l)
		if key == "" {
			continue
		}

		i, ok := index[key]
		if !ok {
			g := Group{Key: key, Zip: normalizeZip(l.Zip), Address: strings.TrimSpace(l.Address)}
			if lat, lon, ok := coords(l); ok {
				g.Lat, g.Lon = &lat, &lon
			}
			groups = append(groups, g)
			i = len(groups) - 1
			index[key] = i
		}

		g := &groups[i]
		ref := key + "|" + l.Ref()
		if !seenRef[ref] {
			seenRef[ref] = true
			g.Sources = append(g.Sources, l.Ref())
		}
		if l.UserID != "" && !contains(g.UserIDs, l.UserID) {
			g.UserIDs = append(g.UserIDs, l.UserID)
		}
	}
	return groups
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Query renders the provider query for a group: "lat,lon" when coordinates
// are known, else the zip, else the address.
func Query(g Group) string {
	if g.Lat != nil && g.Lon != nil {
		return strconv.FormatFloat(*g.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(*g.Lon, 'f', 4, 64)
	}
	if g.Zip != "" {
		return g.Zip
	}
	return g.Address
}
