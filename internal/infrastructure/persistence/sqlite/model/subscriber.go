package model

type Subscriber struct {
	SubscriberID   uint64  `gorm:"column:subscriber_id;primaryKey;autoIncrement"`
	Email          string  `gorm:"column:email;type:text;not null;uniqueIndex"`
	FHRSID         *int64  `gorm:"column:fhrsid"`
	BusinessName   *string `gorm:"column:business_name;type:text"`
	Source         string  `gorm:"column:source;type:text;not null"`
	Status         string  `gorm:"column:status;type:text;not null"`
	SubscribedAt   string  `gorm:"column:subscribed_at;type:text;not null"`
	UnsubscribedAt *string `gorm:"column:unsubscribed_at;type:text"`
}

func (Subscriber) TableName() string {
	return "subscribers"
}
