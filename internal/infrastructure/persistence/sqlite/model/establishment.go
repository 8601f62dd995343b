package model

type Establishment struct {
	FHRSID              int64    `gorm:"column:fhrsid;primaryKey"`
	BusinessName        string   `gorm:"column:business_name;type:text;not null;index"`
	BusinessType        string   `gorm:"column:business_type;type:text"`
	BusinessTypeID      int      `gorm:"column:business_type_id"`
	RatingValue         string   `gorm:"column:rating_value;type:text;not null;index"`
	RatingDate          string   `gorm:"column:rating_date;type:text"`
	AddressLine1        string   `gorm:"column:address_line1;type:text"`
	AddressLine2        string   `gorm:"column:address_line2;type:text"`
	AddressLine3        string   `gorm:"column:address_line3;type:text"`
	Postcode            string   `gorm:"column:postcode;type:text;index"`
	LocalAuthorityName  string   `gorm:"column:local_authority_name;type:text;index"`
	LocalAuthorityCode  string   `gorm:"column:local_authority_code;type:text"`
	LocalAuthorityEmail string   `gorm:"column:local_authority_email;type:text"`
	SchemeType          string   `gorm:"column:scheme_type;type:text"`
	HygieneScore        *int     `gorm:"column:hygiene_score"`
	StructuralScore     *int     `gorm:"column:structural_score"`
	ManagementScore     *int     `gorm:"column:management_score"`
	Latitude            *float64 `gorm:"column:latitude"`
	Longitude           *float64 `gorm:"column:longitude"`

	// Owned by the outreach surface; the pipeline upsert never touches
	// these columns.
	ContactEmail   *string `gorm:"column:contact_email;type:text"`
	ContactPhone   *string `gorm:"column:contact_phone;type:text"`
	Website        *string `gorm:"column:website;type:text"`
	OutreachStatus string  `gorm:"column:outreach_status;type:text;not null;default:new"`

	FirstSeenAt   string `gorm:"column:first_seen_at;type:text;not null"`
	LastUpdatedAt string `gorm:"column:last_updated_at;type:text;not null;index"`
}

func (Establishment) TableName() string {
	return "establishments"
}
