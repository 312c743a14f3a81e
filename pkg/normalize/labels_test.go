package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

func TestLookupLabel_AllKnownLabels(t *testing.T) {
	labels := Labels()
	require.Len(t, labels, 13)

	for _, l := range labels {
		got, ok := LookupLabel(l.String())
		assert.True(t, ok, "label %q should be known", l.String())
		assert.Equal(t, l, got)
		assert.NotEmpty(t, l.Field())
	}
}

func TestLookupLabel_Unknown(t *testing.T) {
	for _, raw := range []string{"", "Lounge Access", "seat comfort", "Food and Beverages"} {
		got, ok := LookupLabel(raw)
		assert.False(t, ok, "LookupLabel(%q)", raw)
		assert.Equal(t, LabelUnknown, got)
	}
	assert.Equal(t, "", LabelUnknown.Field())
	assert.Equal(t, "unknown", LabelUnknown.String())
	assert.False(t, LabelUnknown.IsRating())
}

func TestLookupLabel_TrimsWhitespace(t *testing.T) {
	got, ok := LookupLabel("  Seat Comfort\n")
	assert.True(t, ok)
	assert.Equal(t, LabelSeatComfort, got)

	got, ok = LookupLabel("Type Of\n  Traveller")
	assert.True(t, ok, "label split across lines")
	assert.Equal(t, LabelTypeOfTraveller, got)

	got, ok = LookupLabel("Food  &  Beverages")
	assert.True(t, ok)
	assert.Equal(t, LabelFoodBeverages, got)
}

func TestLabel_IsRating(t *testing.T) {
	ratings := 0
	for _, l := range Labels() {
		if l.IsRating() {
			ratings++
		}
	}
	assert.Equal(t, 7, ratings)
	assert.True(t, LabelWifiConnectivity.IsRating())
	assert.False(t, LabelRecommended.IsRating())
}

func TestApply_Ratings(t *testing.T) {
	rec := &models.ReviewRecord{}

	assert.True(t, Apply(rec, LabelSeatComfort, StarValue(4)))
	assert.True(t, Apply(rec, LabelCabinStaffService, StarValue(0)))
	assert.True(t, Apply(rec, LabelFoodBeverages, StarValue(9)))
	assert.True(t, Apply(rec, LabelGroundService, TextValue("3")))
	assert.True(t, Apply(rec, LabelValueForMoney, TextValue("N/A")))

	assert.Equal(t, intPtr(4), rec.SeatComfort)
	assert.Equal(t, intPtr(0), rec.CabinStaffService)
	assert.Equal(t, intPtr(5), rec.FoodBeverages)
	assert.Equal(t, intPtr(3), rec.GroundService)
	assert.Nil(t, rec.ValueForMoney)
	assert.Nil(t, rec.InflightEntertainment, "absent rating must stay nil")
	assert.Nil(t, rec.WifiConnectivity)
}

func TestApply_TextFields(t *testing.T) {
	rec := &models.ReviewRecord{}

	Apply(rec, LabelAircraft, TextValue(" A320 "))
	Apply(rec, LabelTypeOfTraveller, TextValue("Solo Leisure"))
	Apply(rec, LabelSeatType, TextValue("Economy Class"))
	Apply(rec, LabelRoute, TextValue("London to Paris"))
	Apply(rec, LabelDateFlown, TextValue("May 2023"))
	Apply(rec, LabelRecommended, TextValue("no"))

	assert.Equal(t, "A320", rec.Aircraft)
	assert.Equal(t, "Solo Leisure", rec.TypeOfTraveller)
	assert.Equal(t, "Economy Class", rec.SeatType)
	assert.Equal(t, "London to Paris", rec.Route)
	assert.Equal(t, "May 2023", rec.DateFlown)
	assert.Equal(t, "no", rec.Recommended)
}

func TestApply_UnknownLabelLeavesRecordUntouched(t *testing.T) {
	rec := &models.ReviewRecord{Title: "unchanged"}
	assert.False(t, Apply(rec, LabelUnknown, TextValue("value")))
	assert.Equal(t, models.ReviewRecord{Title: "unchanged"}, *rec)
	assert.False(t, Apply(nil, LabelAircraft, TextValue("A320")))
}

func TestApply_StarsUnderTextLabel(t *testing.T) {
	rec := &models.ReviewRecord{}
	Apply(rec, LabelRecommended, StarValue(3))
	assert.Equal(t, "3", rec.Recommended)
}
