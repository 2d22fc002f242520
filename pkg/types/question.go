package types

type Question struct {
	ID            int64    `db:"id" json:"id"`
	Category      string   `db:"category" json:"category"`
	CategoryOrder int      `db:"category_order" json:"category_order"`
	Section       *string  `db:"section" json:"section"`
	QuestionText  string   `db:"question_text" json:"question_text"`
	QuestionType  string   `db:"question_type" json:"question_type"`
	Options       []string `db:"options" json:"options"`
	IsRequired    bool     `db:"is_required" json:"is_required"`
	SortOrder     int      `db:"sort_order" json:"sort_order"`
	IsActive      bool     `db:"is_active" json:"is_active"`
}
