package domain

import "time"

// Message records one successful outbound send. It references the durable
// instance row, not the live session key, and is never mutated.
type Message struct {
	ID         int64     `json:"id,string" gorm:"primaryKey"`
	InstanceId int64     `json:"instance_id,string" gorm:"index;not null"`
	FromUser   string    `json:"from_user"`
	ToUser     string    `json:"to_user"`
	Body       string    `json:"body" gorm:"type:text"`
	MsgType    string    `json:"msg_type" gorm:"default:'text'"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName Specify table name
func (Message) TableName() string {
	return "wa_message"
}
