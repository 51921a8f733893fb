package entity

import "time"

type Migration struct {
	Version   int `gorm:"primaryKey;autoIncrement:false"`
	AppliedAt time.Time
}

func (t *Migration) TableName() string {
	return "migrations"
}
