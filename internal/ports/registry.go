package ports

import "context"

// RegistryEstablishment is the raw upstream record, field names as the
// FHRS API returns them. Malformed-but-present values pass through
// verbatim; normalization is the mapper's job.
type RegistryEstablishment struct {
	FHRSID                     int64            `json:"FHRSID"`
	BusinessName               string           `json:"BusinessName"`
	BusinessType               string           `json:"BusinessType"`
	BusinessTypeID             int              `json:"BusinessTypeID"`
	RatingValue                string           `json:"RatingValue"`
	RatingDate                 string           `json:"RatingDate"`
	AddressLine1               string           `json:"AddressLine1"`
	AddressLine2               string           `json:"AddressLine2"`
	AddressLine3               string           `json:"AddressLine3"`
	AddressLine4               string           `json:"AddressLine4"`
	PostCode                   string           `json:"PostCode"`
	LocalAuthorityName         string           `json:"LocalAuthorityName"`
	LocalAuthorityCode         string           `json:"LocalAuthorityCode"`
	LocalAuthorityEmailAddress string           `json:"LocalAuthorityEmailAddress"`
	SchemeType                 string           `json:"SchemeType"`
	Geocode                    *RegistryGeocode `json:"geocode"`
	Scores                     *RegistryScores  `json:"scores"`
}

type RegistryGeocode struct {
	Longitude string `json:"longitude"`
	Latitude  string `json:"latitude"`
}

type RegistryScores struct {
	Hygiene                *int `json:"Hygiene"`
	Structural             *int `json:"Structural"`
	ConfidenceInManagement *int `json:"ConfidenceInManagement"`
}

// RegistryPage is one page of upstream results plus the pagination meta
// the upstream reports alongside it.
type RegistryPage struct {
	Establishments []RegistryEstablishment
	TotalPages     int
	TotalCount     int
}

// Registry fetches low-rated establishments one page at a time. It is
// stateless and does not retry; the orchestrator decides what a failed
// page means.
type Registry interface {
	FetchLowRatedPage(ctx context.Context, page int, maxRating int) (RegistryPage, error)
}
