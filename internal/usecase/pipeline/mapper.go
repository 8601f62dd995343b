package pipeline

import (
	"strconv"

	"hygienefix/internal/domain/hygiene"
	"hygienefix/internal/ports"
)

// MapRow normalizes one raw registry record into the storage shape. Pure;
// missing nested score and geocode fields become nil (absent, distinct
// from zero). Malformed-but-present fields pass through verbatim; this
// is a flattening step, not a validation layer.
func MapRow(raw ports.RegistryEstablishment) ports.Establishment {
	row := ports.Establishment{
		FHRSID:              raw.FHRSID,
		BusinessName:        raw.BusinessName,
		BusinessType:        raw.BusinessType,
		BusinessTypeID:      raw.BusinessTypeID,
		RatingValue:         hygiene.NormalizeRating(raw.RatingValue),
		RatingDate:          raw.RatingDate,
		AddressLine1:        raw.AddressLine1,
		AddressLine2:        raw.AddressLine2,
		AddressLine3:        raw.AddressLine3,
		Postcode:            raw.PostCode,
		LocalAuthorityName:  raw.LocalAuthorityName,
		LocalAuthorityCode:  raw.LocalAuthorityCode,
		LocalAuthorityEmail: raw.LocalAuthorityEmailAddress,
		SchemeType:          raw.SchemeType,
	}

	if raw.Scores != nil {
		row.HygieneScore = raw.Scores.Hygiene
		row.StructuralScore = raw.Scores.Structural
		row.ManagementScore = raw.Scores.ConfidenceInManagement
	}

	if raw.Geocode != nil {
		row.Latitude = parseCoordinate(raw.Geocode.Latitude)
		row.Longitude = parseCoordinate(raw.Geocode.Longitude)
	}

	return row
}

// MapRows maps a whole page.
func MapRows(raw []ports.RegistryEstablishment) []ports.Establishment {
	rows := make([]ports.Establishment, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, MapRow(r))
	}
	return rows
}

// parseCoordinate treats an empty or unparseable geocode string as absent.
func parseCoordinate(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
