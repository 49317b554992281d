package models

// Bin is one sparse histogram bucket keyed by its lower bound.
type Bin struct {
	Bucket int `json:"bucket"`
	Count  int `json:"count"`
}

// PeriodCount is one year-month bucket of the time series.
type PeriodCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// Summary holds the aggregate statistics over a filtered dataset. It is
// recomputed on every query.
type Summary struct {
	Count            int           `json:"count"`
	MedianPricePerM2 *float64      `json:"median_price_per_m2"`
	PriceBins        []Bin         `json:"price_bins"`
	SurfaceBins      []Bin         `json:"surface_bins"`
	TimeSeries       []PeriodCount `json:"time_series"`
}

// Filters narrows a dataset before aggregation. Nil fields are not applied.
// Limit is applied last and truncates.
type Filters struct {
	MinPricePerM2 *float64
	MaxPricePerM2 *float64
	City          *string
	MinSurface    *float64
	Rooms         *float64
	Limit         *int
}

// Meta describes where a query response was loaded from.
type Meta struct {
	Source string `json:"source"`
}

// DatasetView is the filtered and aggregated response of the query API.
type DatasetView struct {
	Meta    Meta               `json:"meta"`
	Summary Summary            `json:"summary"`
	Rows    []NormalizedRecord `json:"rows"`
}
