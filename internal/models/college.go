package models

// College is a read-only reference entity.
type College struct {
	CollegeIdx int64  `json:"college_idx" gorm:"column:college_idx;primaryKey"`
	CollegeNm  string `json:"college_nm" gorm:"column:college_nm;size:100;not null"`

	Departments []Department `json:"departments" gorm:"foreignKey:CollegeIdx;references:CollegeIdx"`
}

// TableName returns the database table name for the College model.
func (College) TableName() string {
	return "college"
}

// Department belongs to a College.
type Department struct {
	DptIdx     int64  `json:"dpt_idx" gorm:"column:dpt_idx;primaryKey"`
	CollegeIdx int64  `json:"college_idx" gorm:"column:college_idx;not null;index"`
	DptNm      string `json:"dpt_nm" gorm:"column:dpt_nm;size:100;not null"`
}

// TableName returns the database table name for the Department model.
func (Department) TableName() string {
	return "department"
}

// All lists every model for schema migration, parents first.
func All() []any {
	return []any{&College{}, &Department{}, &User{}, &Category{}, &Post{}, &Comment{}}
}
