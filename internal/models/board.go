package models

import "time"

// Category groups posts on the board.
type Category struct {
	CategoryIdx  int64     `json:"category_idx" gorm:"column:category_idx;primaryKey"`
	CategoryNm   string    `json:"category_nm" gorm:"column:category_nm;size:50;uniqueIndex;not null"`
	CategoryIcon *string   `json:"category_icon" gorm:"column:category_icon"`
	RegDt        time.Time `json:"reg_dt" gorm:"column:reg_dt;autoCreateTime"`

	Posts []Post `json:"posts" gorm:"foreignKey:CategoryIdx;references:CategoryIdx"`
}

// TableName returns the database table name for the Category model.
func (Category) TableName() string {
	return "board_category"
}

// Post is a board entry. The GraphQL field post_idx is stored as board_idx.
type Post struct {
	PostIdx     int64     `json:"post_idx" gorm:"column:board_idx;primaryKey"`
	CategoryIdx int64     `json:"category_idx" gorm:"column:category_idx;not null;index"`
	UserIdx     int64     `json:"user_idx" gorm:"column:user_idx;not null;index"`
	Title       string    `json:"title" gorm:"column:title;size:200;not null"`
	Body        string    `json:"body" gorm:"column:body;type:text"`
	ViewCnt     int64     `json:"view_cnt" gorm:"column:view_cnt;not null;default:0"`
	RegDt       time.Time `json:"reg_dt" gorm:"column:reg_dt;autoCreateTime"`

	// Belongs-to sides are read-only for migration: the target models carry
	// a same-named key field, so gorm would otherwise guess has-one and put
	// the constraint on the parent table. Constraints come from the has-many
	// sides (Category.Posts, User.Articles, Post.Comments).
	Category *Category `json:"category" gorm:"foreignKey:CategoryIdx;references:CategoryIdx;-:migration"`
	User     *User     `json:"user" gorm:"foreignKey:UserIdx;references:UserIdx;-:migration"`
	Comments []Comment `json:"comments" gorm:"foreignKey:PostIdx;references:PostIdx;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for the Post model.
func (Post) TableName() string {
	return "board"
}

// Comment is a reply on a post.
type Comment struct {
	CmtIdx  int64     `json:"cmt_idx" gorm:"column:cmt_idx;primaryKey"`
	PostIdx int64     `json:"post_idx" gorm:"column:board_idx;not null;index"`
	UserIdx int64     `json:"user_idx" gorm:"column:user_idx;not null;index"`
	Text    string    `json:"text" gorm:"column:text;type:text;not null"`
	RegDt   time.Time `json:"reg_dt" gorm:"column:reg_dt;autoCreateTime"`

	Commenter *User `json:"commenter" gorm:"foreignKey:UserIdx;references:UserIdx;-:migration"`
}

// TableName returns the database table name for the Comment model.
func (Comment) TableName() string {
	return "board_comment"
}
