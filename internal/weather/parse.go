package weather

import (
	"encoding/json"
	"fmt"
	"time"
)

type apiResponse struct {
	Location struct {
		Name    string  `json:"name"`
		Region  string  `json:"region"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		TzID    string  `json:"tz_id"`
	} `json:"location"`
	Current struct {
		TempF      float64      `json:"temp_f"`
		WindMph    float64      `json:"wind_mph"`
		GustMph    float64      `json:"gust_mph"`
		PrecipIn   float64      `json:"precip_in"`
		Condition  apiCondition `json:"condition"`
		AirQuality *apiAQ       `json:"air_quality"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string    `json:"date"`
			Hour []apiHour `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Alerts struct {
		Alert []apiAlert `json:"alert"`
	} `json:"alerts"`
}

type apiCondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

type apiAQ struct {
	USEPAIndex *float64 `json:"us-epa-index"`
}

type apiHour struct {
	TimeEpoch    int64        `json:"time_epoch"`
	TempF        float64      `json:"temp_f"`
	WindMph      float64      `json:"wind_mph"`
	GustMph      float64      `json:"gust_mph"`
	PrecipIn     float64      `json:"precip_in"`
	SnowCm       float64      `json:"snow_cm"`
	ChanceOfRain float64      `json:"chance_of_rain"`
	ChanceOfSnow float64      `json:"chance_of_snow"`
	Condition    apiCondition `json:"condition"`
	AirQuality   *apiAQ       `json:"air_quality"`
}

type apiAlert struct {
	Headline  string `json:"headline"`
	Severity  string `json:"severity"`
	Urgency   string `json:"urgency"`
	Areas     string `json:"areas"`
	Event     string `json:"event"`
	Desc      string `json:"desc"`
	Effective string `json:"effective"`
	Expires   string `json:"expires"`
}

const cmPerInch = 2.54

// ParseForecast decodes a stored or freshly fetched provider body.
func ParseForecast(body []byte, fetchedAt time.Time) (*Forecast, error) {
	var data apiResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal forecast: %w", err)
	}

	f := &Forecast{
		Location: Location{
			Name:     data.Location.Name,
			Region:   data.Location.Region,
			Country:  data.Location.Country,
			Lat:      data.Location.Lat,
			Lon:      data.Location.Lon,
			Timezone: data.Location.TzID,
		},
		Current: Current{
			TempF:         data.Current.TempF,
			WindMph:       data.Current.WindMph,
			GustMph:       data.Current.GustMph,
			PrecipIn:      data.Current.PrecipIn,
			ConditionCode: data.Current.Condition.Code,
			ConditionText: data.Current.Condition.Text,
			AirQuality:    data.Current.AirQuality.index(),
		},
		FetchedAt: fetchedAt,
		RawJSON:   string(body),
	}

	for _, day := range data.Forecast.ForecastDay {
		for _, h := range day.Hour {
			if h.TimeEpoch == 0 {
				continue
			}
			f.Hours = append(f.Hours, Hour{
				Time:          time.Unix(h.TimeEpoch, 0).UTC(),
				TempF:         h.TempF,
				WindMph:       h.WindMph,
				GustMph:       h.GustMph,
				PrecipIn:      h.PrecipIn,
				SnowIn:        h.SnowCm / cmPerInch,
				ChanceOfRain:  h.ChanceOfRain,
				ChanceOfSnow:  h.ChanceOfSnow,
				ConditionCode: h.Condition.Code,
				ConditionText: h.Condition.Text,
				Precip:        ClassifyPrecip(h.Condition.Code, h.Condition.Text),
				AirQuality:    h.AirQuality.index(),
			})
		}
	}

	for _, a := range data.Alerts.Alert {
		f.Alerts = append(f.Alerts, Alert{
			Headline:    a.Headline,
			Event:       a.Event,
			Severity:    ParseSeverity(a.Severity, a.Event),
			Urgency:     a.Urgency,
			Areas:       a.Areas,
			Description: a.Desc,
			Effective:   parseAlertTime(a.Effective),
			Expires:     parseAlertTime(a.Expires),
		})
	}

	return f, nil
}

func (aq *apiAQ) index() float64 {
	if aq == nil || aq.USEPAIndex == nil {
		return 0
	}
	return *aq.USEPAIndex
}

// parseAlertTime accepts RFC3339 with or without seconds. Unparseable
// values come back as the zero time, which Overlaps treats as open.
func parseAlertTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
