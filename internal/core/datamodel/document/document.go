package document

import "time"

type Document struct {
	ID               string    `gorm:"primaryKey;column:id"`
	Title            string    `gorm:"column:title;not null"`
	Amount           float64   `gorm:"column:amount;not null"`
	Type             string    `gorm:"column:type;not null"`
	DepartmentOrigin string    `gorm:"column:department_origin;not null;index"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Document) TableName() string {
	return "documents"
}

// Receipt records that a document was scanned and accepted. A document has at most one.
type Receipt struct {
	ID         int64     `gorm:"primaryKey"`
	DocumentID string    `gorm:"column:document_id;uniqueIndex;not null"`
	Department string    `gorm:"column:department;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;autoCreateTime"`
}

func (Receipt) TableName() string {
	return "document_receipts"
}
