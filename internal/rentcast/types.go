package rentcast

// PropertyRecord is the canonical description of a subject property as
// returned by the /properties endpoint.
type PropertyRecord struct {
	FormattedAddress string                   `json:"formattedAddress"`
	PropertyType     string                   `json:"propertyType"`
	Bedrooms         float64                  `json:"bedrooms"`
	Bathrooms        float64                  `json:"bathrooms"`
	SquareFootage    int                      `json:"squareFootage"`
	YearBuilt        int                      `json:"yearBuilt"`
	LotSize          float64                  `json:"lotSize"`
	ZipCode          string                   `json:"zipCode"`
	Features         Features                 `json:"features"`
	TaxAssessments   map[string]TaxAssessment `json:"taxAssessments"`
}

// Features holds the named property attributes the scorer cares about.
// Absent attributes decode to zero values and simply contribute nothing.
type Features struct {
	GarageSpaces int    `json:"garageSpaces"`
	CoolingType  string `json:"coolingType"`
	HeatingType  string `json:"heatingType"`
	FloorCount   int    `json:"floorCount"`
	Pool         bool   `json:"pool"`
}

// TaxAssessment is a single year's assessed values.
type TaxAssessment struct {
	Year         int     `json:"year"`
	Value        float64 `json:"value"`
	Land         float64 `json:"land"`
	Improvements float64 `json:"improvements"`
}

// Comparable is one comparable sale or rental observation. Price is a sale
// price or a monthly rent depending on which estimate it came from.
// Correlation is a similarity fraction in [0,1], not a percentage.
// Pointer fields distinguish "not reported" from a genuine zero.
type Comparable struct {
	FormattedAddress string   `json:"formattedAddress"`
	Price            float64  `json:"price"`
	SquareFootage    int      `json:"squareFootage"`
	Bedrooms         float64  `json:"bedrooms"`
	Bathrooms        float64  `json:"bathrooms"`
	YearBuilt        int      `json:"yearBuilt"`
	Distance         *float64 `json:"distance"`
	Correlation      *float64 `json:"correlation"`
	DaysOnMarket     *int     `json:"daysOnMarket"`
	LastSeenDate     string   `json:"lastSeenDate"`
	RemovedDate      string   `json:"removedDate"`
}

// Active reports whether the listing is still on the market.
func (c Comparable) Active() bool {
	return c.RemovedDate == ""
}

// ValueEstimate is the AVM sale-value response.
type ValueEstimate struct {
	Price          float64      `json:"price"`
	PriceRangeLow  float64      `json:"priceRangeLow"`
	PriceRangeHigh float64      `json:"priceRangeHigh"`
	Comparables    []Comparable `json:"comparables"`
}

// RentEstimate is the AVM long-term rent response. Rent is monthly.
type RentEstimate struct {
	Rent          float64      `json:"rent"`
	RentRangeLow  float64      `json:"rentRangeLow"`
	RentRangeHigh float64      `json:"rentRangeHigh"`
	Comparables   []Comparable `json:"comparables"`
}

// MarketStats summarizes sale activity for a zip code.
type MarketStats struct {
	AveragePrice              float64 `json:"averagePrice"`
	AveragePricePerSquareFoot float64 `json:"averagePricePerSquareFoot"`
	TotalListings             int     `json:"totalListings"`
	AverageSquareFootage      float64 `json:"averageSquareFootage"`
	AverageDaysOnMarket       float64 `json:"averageDaysOnMarket"`
}

// marketResponse mirrors the /markets payload. Some zips only report rental
// activity; the client synthesizes minimal sale stats from it in that case.
type marketResponse struct {
	SaleData   *MarketStats `json:"saleData"`
	RentalData *MarketStats `json:"rentalData"`
}
