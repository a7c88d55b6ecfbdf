package user

import "time"

// User is a row of the document API's user directory.
type User struct {
	ID         string    `db:"id" gorm:"primaryKey;column:id"`
	Name       string    `db:"name" gorm:"column:name;not null"`
	Department string    `db:"department" gorm:"column:department;not null"`
	IsActive   bool      `db:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt  time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
