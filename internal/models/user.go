// Package models contains the relational entities served by the gateway.
package models

import "time"

// Email verification flag values stored in auth_email_yn.
const (
	Verified   = "Y"
	Unverified = "N"
)

// User is a registered member. UserPW and AuthToken never leave the store
// layer: they have no GraphQL field and no json name.
type User struct {
	UserIdx     int64      `json:"user_idx" gorm:"column:user_idx;primaryKey"`
	UserID      string     `json:"user_id" gorm:"column:user_id;size:50;uniqueIndex;not null"`
	UserPW      string     `json:"-" gorm:"column:user_pw"`
	UserNm      string     `json:"user_nm" gorm:"column:user_nm;size:50"`
	NickNm      string     `json:"nick_nm" gorm:"column:nick_nm;size:50;uniqueIndex"`
	Email       string     `json:"email" gorm:"column:email;size:100;uniqueIndex;not null"`
	UserProfile *string    `json:"user_profile" gorm:"column:user_profile"`
	AuthEmailYN string     `json:"auth_email_yn" gorm:"column:auth_email_yn;size:1;default:N"`
	AuthToken   *string    `json:"-" gorm:"column:auth_token"`
	LogIP       *string    `json:"log_ip" gorm:"column:log_ip;size:45"`
	LogDt       *time.Time `json:"log_dt" gorm:"column:log_dt"`
	RegDt       time.Time  `json:"reg_dt" gorm:"column:reg_dt;autoCreateTime"`

	Articles []Post    `json:"articles" gorm:"foreignKey:UserIdx;references:UserIdx"`
	Comments []Comment `json:"comments" gorm:"foreignKey:UserIdx;references:UserIdx"`
}

// TableName returns the database table name for the User model.
func (User) TableName() string {
	return "users"
}
