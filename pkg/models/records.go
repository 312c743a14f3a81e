package models

// AirlineRecord is the profile of one airline, extracted once from the first
// page of its review chain. Name is the identity key.
type AirlineRecord struct {
	Name        string `json:"name" db:"name"`
	ImageURL    string `json:"imageUrl" db:"image"`
	ReviewCount *int   `json:"reviewCount" db:"reviewcount"`
}

// ReviewRecord is one normalized review. The field set and order is the export
// contract consumed by downstream tooling; do not rename or reorder.
//
// Nil pointers mean the value was not present on the page. Rating fields are
// never coerced to 0.
type ReviewRecord struct {
	ReviewID     string  `json:"reviewId" db:"reviewid"`
	Title        string  `json:"title" db:"title"`
	Content      string  `json:"content" db:"content"`
	VerifiedType string  `json:"verifiedType" db:"verifiedtype"`
	AirlineName  string  `json:"airlineName" db:"airlinename"`
	UserName     string  `json:"userName" db:"username"`
	Country      string  `json:"country" db:"country"`
	DateReview   *string `json:"dateReview" db:"datereview"`

	Aircraft        string `json:"aircraft" db:"aircraft"`
	TypeOfTraveller string `json:"typeOfTraveller" db:"typeoftraveller"`
	SeatType        string `json:"seatType" db:"seattype"`
	Route           string `json:"route" db:"route"`
	DateFlown       string `json:"dateFlown" db:"dateflown"`

	Score                 *int `json:"score" db:"score"`
	SeatComfort           *int `json:"seatComfort" db:"seatcomfort"`
	CabinStaffService     *int `json:"cabinStaffService" db:"cabinstaffservice"`
	FoodBeverages         *int `json:"foodBeverages" db:"foodbeverages"`
	InflightEntertainment *int `json:"inflightEntertainment" db:"inflightentertainment"`
	GroundService         *int `json:"groundService" db:"groundservice"`
	WifiConnectivity      *int `json:"wifiConnectivity" db:"wificonnectivity"`
	ValueForMoney         *int `json:"valueForMoney" db:"valueformoney"`

	Recommended string `json:"recommended" db:"recommended"`
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v
func StringPtr(v string) *string {
	return &v
}
