package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Default currency and area unit used when a payload does not name one.
const (
	CurrencyRUB     = "RUB"
	UnitSquareMeter = "m2"
	UnitSotka       = "sotka"
	UnitHectare     = "ha"
)

var currencySymbols = map[string]string{
	"RUB": "₽",
	"USD": "$",
	"EUR": "€",
}

var areaSymbols = map[string]string{
	UnitSquareMeter: "м²",
	UnitSotka:       "сот.",
	UnitHectare:     "га",
}

// ru locale groups thousands with a no-break space; output uses a plain space.
var (
	ruPrinter     = message.NewPrinter(language.Russian)
	spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ")
)

// Price is a non-negative amount in a currency.
type Price struct {
	value    float64
	currency string
}

// NewPrice validates and builds a Price. Negative values are rejected.
func NewPrice(value float64, currency string) (Price, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Price{}, &ValidationError{Field: "price", Value: value, Reason: "not a finite number"}
	}
	if value < 0 {
		return Price{}, &ValidationError{Field: "price", Value: value, Reason: "must be >= 0"}
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = CurrencyRUB
	}
	return Price{value: value, currency: currency}, nil
}

// Value returns the amount.
func (p Price) Value() float64 { return p.value }

// Currency returns the ISO currency code.
func (p Price) Currency() string { return p.currency }

// Format renders the price with space-grouped thousands and the currency symbol,
// e.g. "5 000 000 ₽".
func (p Price) Format() string {
	var amount string
	if p.value == math.Trunc(p.value) {
		amount = ruPrinter.Sprintf("%d", int64(p.value))
	} else {
		amount = ruPrinter.Sprintf("%.2f", p.value)
	}
	amount = spaceReplacer.Replace(amount)

	symbol, ok := currencySymbols[p.currency]
	if !ok {
		symbol = p.currency
	}
	return amount + " " + symbol
}

// MarshalJSON renders the price as {"value":..,"currency":..,"formatted":..}.
func (p Price) MarshalJSON() ([]byte, error) {
	return marshalObject(map[string]any{
		"value":     p.value,
		"currency":  p.currency,
		"formatted": p.Format(),
	})
}

// Area is a non-negative surface measurement.
type Area struct {
	value float64
	unit  string
}

// NewArea validates and builds an Area. Negative values are rejected.
func NewArea(value float64, unit string) (Area, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Area{}, &ValidationError{Field: "area", Value: value, Reason: "not a finite number"}
	}
	if value < 0 {
		return Area{}, &ValidationError{Field: "area", Value: value, Reason: "must be >= 0"}
	}
	if unit == "" {
		unit = UnitSquareMeter
	}
	return Area{value: value, unit: unit}, nil
}

// Value returns the measurement.
func (a Area) Value() float64 { return a.value }

// Unit returns the measurement unit.
func (a Area) Unit() string { return a.unit }

// Format renders e.g. "45.5 м²".
func (a Area) Format() string {
	symbol, ok := areaSymbols[a.unit]
	if !ok {
		symbol = a.unit
	}
	return strconv.FormatFloat(a.value, 'f', -1, 64) + " " + symbol
}

// MarshalJSON renders the area as {"value":..,"unit":..}.
func (a Area) MarshalJSON() ([]byte, error) {
	return marshalObject(map[string]any{
		"value": a.value,
		"unit":  a.unit,
	})
}

// Location is where an object is. Every part is optional.
type Location struct {
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Address  string   `json:"address,omitempty"`
	District string   `json:"district,omitempty"`
	Metro    string   `json:"metro,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lng != nil
}

// Geohash encodes the coordinates with the given number of characters.
// Returns "" when coordinates are unknown.
func (l Location) Geohash(chars uint) string {
	if !l.HasCoordinates() {
		return ""
	}
	if chars == 0 {
		chars = 9
	}
	return geohash.EncodeWithPrecision(*l.Lat, *l.Lng, chars)
}

// IsEmpty reports whether no part of the location is known.
func (l Location) IsEmpty() bool {
	return l.Lat == nil && l.Lng == nil && l.Address == "" && l.District == "" && l.Metro == ""
}

// Contact is how to reach a seller or sales office.
type Contact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// IsEmpty reports whether no contact channel is known.
func (c Contact) IsEmpty() bool {
	return c.Phone == "" && c.Email == "" && c.Website == ""
}
