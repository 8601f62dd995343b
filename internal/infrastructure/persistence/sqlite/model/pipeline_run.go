package model

type PipelineRun struct {
	RunID             string  `gorm:"column:run_id;type:text;primaryKey"`
	RunType           string  `gorm:"column:run_type;type:text;not null"`
	Status            string  `gorm:"column:status;type:text;not null"`
	StartedAt         string  `gorm:"column:started_at;type:text;not null;index"`
	CompletedAt       *string `gorm:"column:completed_at;type:text"`
	TotalFetched      int     `gorm:"column:total_fetched;not null;default:0"`
	NewEstablishments int     `gorm:"column:new_establishments;not null;default:0"`
	RatingChanges     int     `gorm:"column:rating_changes;not null;default:0"`
	Errors            int     `gorm:"column:errors;not null;default:0"`
	ErrorLog          string  `gorm:"column:error_log;type:text;not null;default:''"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
