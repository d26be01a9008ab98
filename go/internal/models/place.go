package models

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Place is a candidate venue. Places are never mutated after they are issued;
// a new suggestion batch brings new Place values.
type Place struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Address        string   `json:"address" yaml:"address"`
	Location       Location `json:"location" yaml:"location"`
	Rating         float64  `json:"rating" yaml:"rating"`
	PriceLevel     int      `json:"price_level" yaml:"price_level"`
	CuisineType    string   `json:"cuisine_type" yaml:"cuisine_type"`
	Photos         []string `json:"photos" yaml:"photos"`
	Description    string   `json:"description" yaml:"description"`
	RelevanceScore float64  `json:"relevance_score" yaml:"relevance_score"`
	Reasons        []string `json:"reasons" yaml:"reasons"`
}
