package flightsearch

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Quote is the single best itinerary the search provider returned for a
// route query.
type Quote struct {
	Price              float64
	OriginAirport      string
	DestinationAirport string
	OriginCity         string
	DestinationCity    string
	OriginCountry      string
	DestinationCountry string
	Distance           float64
}

var summaryPrinter = message.NewPrinter(language.English)

// Summary renders the human-readable deal line used in notifications and
// console output, with the price grouped per locale ("1,234.00").
func (q Quote) Summary(currency string) string {
	return summaryPrinter.Sprintf("Flight from %s (%s) to %s (%s) for %.2f %s.",
		q.OriginCity, q.OriginAirport, q.DestinationCity, q.DestinationAirport, q.Price, currency)
}
