package normalize

import (
	"strconv"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

// Label is one of the fixed row labels of a review's rating sub-table
type Label int

const (
	LabelUnknown Label = iota
	LabelAircraft
	LabelTypeOfTraveller
	LabelSeatType
	LabelRoute
	LabelDateFlown
	LabelSeatComfort
	LabelCabinStaffService
	LabelFoodBeverages
	LabelInflightEntertainment
	LabelGroundService
	LabelValueForMoney
	LabelWifiConnectivity
	LabelRecommended
)

// labelCount is the number of known labels (excluding LabelUnknown)
const labelCount = int(LabelRecommended)

// labelInfo holds the page text and canonical field key of each label, indexed by Label
var labelInfo = [...]struct {
	text   string
	field  string
	rating bool
}{
	LabelUnknown:               {"", "", false},
	LabelAircraft:              {"Aircraft", "aircraft", false},
	LabelTypeOfTraveller:       {"Type Of Traveller", "typeOfTraveller", false},
	LabelSeatType:              {"Seat Type", "seatType", false},
	LabelRoute:                 {"Route", "route", false},
	LabelDateFlown:             {"Date Flown", "dateFlown", false},
	LabelSeatComfort:           {"Seat Comfort", "seatComfort", true},
	LabelCabinStaffService:     {"Cabin Staff Service", "cabinStaffService", true},
	LabelFoodBeverages:         {"Food & Beverages", "foodBeverages", true},
	LabelInflightEntertainment: {"Inflight Entertainment", "inflightEntertainment", true},
	LabelGroundService:         {"Ground Service", "groundService", true},
	LabelValueForMoney:         {"Value For Money", "valueForMoney", true},
	LabelWifiConnectivity:      {"Wifi & Connectivity", "wifiConnectivity", true},
	LabelRecommended:           {"Recommended", "recommended", false},
}

// Labels returns every known label in table order
func Labels() []Label {
	out := make([]Label, 0, labelCount)
	for l := LabelAircraft; l <= LabelRecommended; l++ {
		out = append(out, l)
	}
	return out
}

// LookupLabel maps the raw first-cell text of a rating row to its Label.
// The match is exact once whitespace is squashed; unknown text returns
// (LabelUnknown, false).
func LookupLabel(raw string) (Label, bool) {
	switch SquashSpace(raw) {
	case "Aircraft":
		return LabelAircraft, true
	case "Type Of Traveller":
		return LabelTypeOfTraveller, true
	case "Seat Type":
		return LabelSeatType, true
	case "Route":
		return LabelRoute, true
	case "Date Flown":
		return LabelDateFlown, true
	case "Seat Comfort":
		return LabelSeatComfort, true
	case "Cabin Staff Service":
		return LabelCabinStaffService, true
	case "Food & Beverages":
		return LabelFoodBeverages, true
	case "Inflight Entertainment":
		return LabelInflightEntertainment, true
	case "Ground Service":
		return LabelGroundService, true
	case "Value For Money":
		return LabelValueForMoney, true
	case "Wifi & Connectivity":
		return LabelWifiConnectivity, true
	case "Recommended":
		return LabelRecommended, true
	}
	return LabelUnknown, false
}

func (l Label) valid() bool {
	return l > LabelUnknown && l <= LabelRecommended
}

// String returns the label as it appears on the page
func (l Label) String() string {
	if !l.valid() {
		return "unknown"
	}
	return labelInfo[l].text
}

// Field returns the canonical ReviewRecord field key (JSON name) for the label
func (l Label) Field() string {
	if !l.valid() {
		return ""
	}
	return labelInfo[l].field
}

// IsRating reports whether the label maps to a 0-5 rating field
func (l Label) IsRating() bool {
	return l.valid() && labelInfo[l].rating
}

// RawValue is the uninterpreted second cell of a rating row: either a star
// widget (Stars holds the filled-icon count) or plain text.
type RawValue struct {
	Text    string
	Stars   int
	IsStars bool
}

// TextValue builds a plain-text RawValue
func TextValue(text string) RawValue {
	return RawValue{Text: text}
}

// StarValue builds a star-widget RawValue
func StarValue(filled int) RawValue {
	return RawValue{Stars: filled, IsStars: true}
}

// Apply writes v into the field of rec selected by label. Rating fields receive
// a star count or a range-checked number (nil when the text is not a valid
// rating); text fields receive the text with whitespace squashed. Returns false if
// nothing could be assigned (unknown label).
func Apply(rec *models.ReviewRecord, label Label, v RawValue) bool {
	if rec == nil || !label.valid() {
		return false
	}

	if label.IsRating() {
		var rating *int
		if v.IsStars {
			rating = CountStars(v.Stars)
		} else {
			rating = ParseRating(v.Text)
		}
		*ratingField(rec, label) = rating
		return true
	}

	text := SquashSpace(v.Text)
	if v.IsStars {
		// Star widget under a text label: keep the count as text
		text = strconv.Itoa(*CountStars(v.Stars))
	}
	*textField(rec, label) = text
	return true
}

func ratingField(rec *models.ReviewRecord, label Label) **int {
	switch label {
	case LabelSeatComfort:
		return &rec.SeatComfort
	case LabelCabinStaffService:
		return &rec.CabinStaffService
	case LabelFoodBeverages:
		return &rec.FoodBeverages
	case LabelInflightEntertainment:
		return &rec.InflightEntertainment
	case LabelGroundService:
		return &rec.GroundService
	case LabelValueForMoney:
		return &rec.ValueForMoney
	case LabelWifiConnectivity:
		return &rec.WifiConnectivity
	}
	panic("normalize: not a rating label: " + label.String())
}

func textField(rec *models.ReviewRecord, label Label) *string {
	switch label {
	case LabelAircraft:
		return &rec.Aircraft
	case LabelTypeOfTraveller:
		return &rec.TypeOfTraveller
	case LabelSeatType:
		return &rec.SeatType
	case LabelRoute:
		return &rec.Route
	case LabelDateFlown:
		return &rec.DateFlown
	case LabelRecommended:
		return &rec.Recommended
	}
	panic("normalize: not a text label: " + label.String())
}
