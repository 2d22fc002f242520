package seed

import (
	"context"
	"fmt"

	"admissions/internal/utils"
	"admissions/pkg/types"
)

type QuestionWriter interface {
	UpsertQuestion(ctx context.Context, question *types.Question) error
}

const (
	categoryPersonal  = "Personal Information"
	categoryContact   = "Contact Details"
	categoryEducation = "Educational Background"
	categoryProgram   = "Program Choice"
	categoryDocuments = "Supporting Documents"
)

// Questions is the admissions form catalog. IDs are fixed because the form posts
// answers as question_<id>; never renumber an existing entry, deactivate it instead.
var Questions = []types.Question{
	{ID: 10, Category: categoryPersonal, CategoryOrder: 1, QuestionText: "First name", QuestionType: "text", IsRequired: true, SortOrder: 1},
	{ID: 11, Category: categoryPersonal, CategoryOrder: 1, QuestionText: "Last name", QuestionType: "text", IsRequired: true, SortOrder: 2},
	{ID: 12, Category: categoryPersonal, CategoryOrder: 1, QuestionText: "Full name as it appears on your certificates", QuestionType: "text", IsRequired: true, SortOrder: 3},
	{ID: 13, Category: categoryPersonal, CategoryOrder: 1, QuestionText: "Date of birth", QuestionType: "date", IsRequired: true, SortOrder: 4},
	{ID: 14, Category: categoryPersonal, CategoryOrder: 1, QuestionText: "Gender", QuestionType: "select", Options: []string{"Female", "Male"}, IsRequired: true, SortOrder: 5},
	{ID: 15, Category: categoryPersonal, CategoryOrder: 1, QuestionText: "Nationality", QuestionType: "text", IsRequired: true, SortOrder: 6},

	{ID: 16, Category: categoryContact, CategoryOrder: 2, QuestionText: "Phone number", QuestionType: "tel", IsRequired: true, SortOrder: 1},
	{ID: 17, Category: categoryContact, CategoryOrder: 2, QuestionText: "Home address", QuestionType: "textarea", IsRequired: true, SortOrder: 2},
	{ID: 18, Category: categoryContact, CategoryOrder: 2, QuestionText: "Next of kin name and phone", QuestionType: "text", IsRequired: true, SortOrder: 3},

	{ID: 19, Category: categoryEducation, CategoryOrder: 3, Section: utils.StringPtr("WASSCE"), QuestionText: "Secondary school attended", QuestionType: "text", IsRequired: true, SortOrder: 1},
	{ID: 20, Category: categoryEducation, CategoryOrder: 3, Section: utils.StringPtr("WASSCE"), QuestionText: "Number of WASSCE sittings", QuestionType: "select", Options: []string{"1", "2"}, IsRequired: true, SortOrder: 2},
	{ID: 21, Category: categoryEducation, CategoryOrder: 3, Section: utils.StringPtr("WASSCE"), QuestionText: "WASSCE results", QuestionType: "table", IsRequired: true, SortOrder: 3},

	{ID: 22, Category: categoryProgram, CategoryOrder: 4, QuestionText: "Program applying for", QuestionType: "select", Options: []string{"State Registered Nurse", "State Enrolled Community Health Nurse", "Midwifery"}, IsRequired: true, SortOrder: 1},

	{ID: 23, Category: categoryDocuments, CategoryOrder: 5, QuestionText: "Birth certificate", QuestionType: "file", IsRequired: true, SortOrder: 1},
	{ID: 24, Category: categoryDocuments, CategoryOrder: 5, QuestionText: "WASSCE result slip", QuestionType: "file", IsRequired: true, SortOrder: 2},
	{ID: 25, Category: categoryDocuments, CategoryOrder: 5, QuestionText: "Passport photograph", QuestionType: "file", IsRequired: true, SortOrder: 3},
}

// SeedQuestions syncs the question catalog with Questions. Safe to run repeatedly.
func SeedQuestions(ctx context.Context, repo QuestionWriter) error {
	for _, q := range Questions {
		q.IsActive = true
		if q.Options == nil {
			q.Options = []string{}
		}
		if err := repo.UpsertQuestion(ctx, &q); err != nil {
			return fmt.Errorf("failed to upsert question %d: %w", q.ID, err)
		}
	}
	return nil
}
