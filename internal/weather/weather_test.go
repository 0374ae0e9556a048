package weather

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	body, err := os.ReadFile("testdata/forecast.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return body
}

func testClient(baseURL string) *Client {
	c := NewClient("test-key", baseURL)
	c.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return c
}

func TestParseForecast(t *testing.T) {
	fetched := time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)
	f, err := ParseForecast(loadFixture(t), fetched)
	if err != nil {
		t.Fatalf("ParseForecast: %v", err)
	}

	if f.Location.Timezone != "America/Chicago" {
		t.Errorf("Timezone = %q", f.Location.Timezone)
	}
	if f.Current.AirQuality != 2 {
		t.Errorf("current AQI = %v, want 2", f.Current.AirQuality)
	}
	if len(f.Hours) != 3 {
		t.Fatalf("len(Hours) = %d, want 3", len(f.Hours))
	}
	if got := f.Horizon(); !got.Equal(f.Hours[2].Time) {
		t.Errorf("Horizon = %v, want last hour %v", got, f.Hours[2].Time)
	}

	h := f.Hours[1]
	if !h.Time.Equal(time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("hour time = %v", h.Time)
	}
	if h.Precip != PrecipRain {
		t.Errorf("Precip = %q, want rain", h.Precip)
	}
	if h.GustMph != 38.5 {
		t.Errorf("GustMph = %v, want 38.5", h.GustMph)
	}

	sleet := f.Hours[2]
	if sleet.Precip != PrecipSleet {
		t.Errorf("Precip = %q, want sleet", sleet.Precip)
	}
	if math.Abs(sleet.SnowIn-1.0) > 1e-9 {
		t.Errorf("SnowIn = %v, want 1.0", sleet.SnowIn)
	}
	if sleet.AirQuality != 0 {
		t.Errorf("missing air quality should be 0, got %v", sleet.AirQuality)
	}
	if sleet.PrecipChance() != 60 {
		t.Errorf("PrecipChance = %v, want 60", sleet.PrecipChance())
	}

	if len(f.Alerts) != 1 {
		t.Fatalf("len(Alerts) = %d, want 1", len(f.Alerts))
	}
	a := f.Alerts[0]
	if a.Event != "Flood Watch" || a.Severity != SeverityModerate {
		t.Errorf("alert = %q/%v", a.Event, a.Severity)
	}
	if !a.Effective.Equal(time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("Effective = %v", a.Effective)
	}
	if f.RawJSON == "" || !f.FetchedAt.Equal(fetched) {
		t.Error("raw body and fetch time should be kept")
	}
}

func TestParseForecast_Invalid(t *testing.T) {
	if _, err := ParseForecast([]byte("{not json"), time.Now()); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestClientForecast(t *testing.T) {
	body := loadFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forecast.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" || q.Get("q") != "30.27,-97.74" || q.Get("days") != "2" {
			t.Errorf("query = %v", q)
		}
		if q.Get("aqi") != "yes" || q.Get("alerts") != "yes" {
			t.Errorf("aqi/alerts not requested: %v", q)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "SiteWeather/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer srv.Close()

	f, err := testClient(srv.URL).Forecast(context.Background(), "30.27,-97.74", 2)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(f.Hours) != 3 {
		t.Errorf("len(Hours) = %d, want 3", len(f.Hours))
	}
}

func TestClientForecast_RetriesRateLimit(t *testing.T) {
	body := loadFixture(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Forecast(context.Background(), "78701", 1); err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestClientForecast_PermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":1006,"message":"No matching location found."}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Forecast(context.Background(), "nowhere", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", got)
	}
}

func TestClientForecast_NoKey(t *testing.T) {
	if _, err := NewClient("", "").Forecast(context.Background(), "78701", 1); err != ErrNoAPIKey {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestClassifyPrecip(t *testing.T) {
	tests := []struct {
		code int
		text string
		want PrecipType
	}{
		{1189, "Moderate rain", PrecipRain},
		{1204, "Light sleet", PrecipSleet},
		{1264, "Moderate or heavy showers of ice pellets", PrecipHail},
		{1225, "Heavy snow", PrecipSnow},
		{1000, "Sunny", PrecipNone},
		{0, "Freezing drizzle", PrecipSleet},
		{0, "Patchy blizzard", PrecipSnow},
		{0, "Thundery outbreaks possible", PrecipRain},
		{0, "Small hail", PrecipHail},
		{0, "", PrecipNone},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ClassifyPrecip(tt.code, tt.text); got != tt.want {
				t.Errorf("ClassifyPrecip(%d, %q) = %q, want %q", tt.code, tt.text, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	ok := Hour{TempF: 70, WindMph: 10, GustMph: 15, ChanceOfRain: 40, AirQuality: 2}

	tests := []struct {
		name   string
		modify func(*Hour)
		want   []string
	}{
		{"valid", func(h *Hour) {}, nil},
		{"too hot", func(h *Hour) { h.TempF = 150 }, []string{FlagTempOutOfRange}},
		{"too cold", func(h *Hour) { h.TempF = -90 }, []string{FlagTempOutOfRange}},
		{"negative wind", func(h *Hour) { h.WindMph = -1 }, []string{FlagWindSpeedUnlikely}},
		{"negative precip", func(h *Hour) { h.PrecipIn = -0.1 }, []string{FlagPrecipNegative}},
		{"chance over 100", func(h *Hour) { h.ChanceOfSnow = 101 }, []string{FlagChanceInvalid}},
		{"aqi off scale", func(h *Hour) { h.AirQuality = 7 }, []string{FlagAirQualityInvalid}},
		{"NaN", func(h *Hour) { h.TempF = math.NaN() }, []string{FlagNotFinite}},
		{"multiple", func(h *Hour) { h.TempF = 200; h.PrecipIn = -1 }, []string{FlagTempOutOfRange, FlagPrecipNegative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ok
			tt.modify(&h)
			got := Validate(h)
			if QualityFlagsToJSON(got) != QualityFlagsToJSON(tt.want) {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		severity, event string
		want            Severity
	}{
		{"Extreme", "Tornado Warning", SeverityExtreme},
		{"severe", "", SeveritySevere},
		{"", "Winter Storm Warning", SeveritySevere},
		{"", "Flood Watch", SeverityModerate},
		{"", "Wind Advisory", SeverityMinor},
		{"", "Something else", SeverityUnknown},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.severity, tt.event); got != tt.want {
			t.Errorf("ParseSeverity(%q, %q) = %v, want %v", tt.severity, tt.event, got, tt.want)
		}
	}
}

func TestAlertOverlaps(t *testing.T) {
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	a := Alert{Effective: base, Expires: base.Add(6 * time.Hour)}

	if !a.Overlaps(base.Add(-2*time.Hour), base.Add(time.Hour)) {
		t.Error("window reaching into alert should overlap")
	}
	if a.Overlaps(base.Add(7*time.Hour), base.Add(9*time.Hour)) {
		t.Error("window after expiry should not overlap")
	}
	if a.Overlaps(base.Add(-5*time.Hour), base.Add(-time.Hour)) {
		t.Error("window before effective should not overlap")
	}
	if !(Alert{}).Overlaps(base, base.Add(time.Hour)) {
		t.Error("open alert should overlap everything")
	}
}
