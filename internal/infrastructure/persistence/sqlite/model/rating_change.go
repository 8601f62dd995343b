package model

type RatingChange struct {
	ChangeID      uint64 `gorm:"column:change_id;primaryKey;autoIncrement"`
	FHRSID        int64  `gorm:"column:fhrsid;not null;index"`
	OldRating     string `gorm:"column:old_rating;type:text;not null"`
	NewRating     string `gorm:"column:new_rating;type:text;not null"`
	OldHygiene    *int   `gorm:"column:old_hygiene"`
	NewHygiene    *int   `gorm:"column:new_hygiene"`
	OldStructural *int   `gorm:"column:old_structural"`
	NewStructural *int   `gorm:"column:new_structural"`
	OldManagement *int   `gorm:"column:old_management"`
	NewManagement *int   `gorm:"column:new_management"`
	DetectedAt    string `gorm:"column:detected_at;type:text;not null;index"`
}

func (RatingChange) TableName() string {
	return "rating_changes"
}
