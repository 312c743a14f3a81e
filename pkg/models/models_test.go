package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageDBEntry_OmitEmpty(t *testing.T) {
	entry := PageDBEntry{
		Status:      PageStatusPending,
		LastAttempt: time.Now().UTC(),
		Kind:        PageKindFirst,
		Page:        1,
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, "error_type")
	assert.NotContains(t, raw, "airline")
	assert.Contains(t, raw, `"kind":"first"`)
}

func TestPageDBEntry_WorkItem(t *testing.T) {
	t.Run("restores chain position", func(t *testing.T) {
		entry := PageDBEntry{Status: PageStatusFailure, Kind: PageKindSubsequent, Airline: "Air Test", Page: 3}
		item := entry.WorkItem("https://example.com/airline-reviews/air-test/page/3/")
		assert.Equal(t, WorkItem{
			URL:     "https://example.com/airline-reviews/air-test/page/3/",
			Kind:    PageKindSubsequent,
			Airline: "Air Test",
			Page:    3,
		}, item)
	})

	t.Run("legacy entry defaults to first page", func(t *testing.T) {
		entry := PageDBEntry{Status: PageStatusPending}
		item := entry.WorkItem("https://example.com/airline-reviews/x")
		assert.Equal(t, PageKindFirst, item.Kind)
		assert.Equal(t, 1, item.Page)
	})
}

func TestReviewRecord_JSONFieldNames(t *testing.T) {
	rec := ReviewRecord{
		ReviewID:    "123",
		AirlineName: "Air Test",
		Score:       IntPtr(7),
		SeatComfort: IntPtr(0),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	expected := []string{
		"reviewId", "title", "content", "verifiedType", "airlineName", "userName", "country",
		"dateReview", "aircraft", "typeOfTraveller", "seatType", "route", "dateFlown", "score",
		"seatComfort", "cabinStaffService", "foodBeverages", "inflightEntertainment",
		"groundService", "wifiConnectivity", "valueForMoney", "recommended",
	}
	assert.Len(t, fields, len(expected))
	for _, key := range expected {
		assert.Contains(t, fields, key)
	}

	// Absent ratings serialize as null, present zero stays zero
	assert.Nil(t, fields["cabinStaffService"])
	assert.Equal(t, float64(0), fields["seatComfort"])
	assert.Nil(t, fields["dateReview"])
}

func TestAirlineRecord_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(AirlineRecord{Name: "Air Test"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Air Test","imageUrl":"","reviewCount":null}`, string(data))
}
