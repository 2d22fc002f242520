package admissions

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"admissions/internal/utils"
	"admissions/pkg/types"
)

const (
	questionKeyPrefix = "question_"
	DefaultCategory   = "Other"
)

// tableKeyPattern matches grouped answers such as wassce_1_subject or employment_2_company.
var tableKeyPattern = regexp.MustCompile(`^(\w+)_(\d+)_(.+)$`)

// QuestionID parses a question_<digits> form key.
func QuestionID(key string) (int64, bool) {
	digits, ok := strings.CutPrefix(key, questionKeyPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsTableKey reports whether key is a grouped row answer. These are not stored as responses.
func IsTableKey(key string) bool {
	return tableKeyPattern.MatchString(key)
}

// DeriveResponses maps question_<id> keys of formData to response rows, attaching
// the file URL stored under the same key. Table-style keys and anything else are ignored.
func DeriveResponses(formData types.FormData, filePaths map[string]string) []*types.ApplicationResponse {
	keys := make([]string, 0, len(formData))
	for k := range formData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*types.ApplicationResponse, 0, len(keys))
	for _, key := range keys {
		id, ok := QuestionID(key)
		if !ok {
			continue
		}

		resp := &types.ApplicationResponse{
			ID:         utils.NanoID(),
			QuestionID: id,
			Answer:     answerText(formData[key]),
		}
		if p, ok := filePaths[key]; ok && p != "" {
			resp.FilePath = utils.StringPtr(p)
		}
		out = append(out, resp)
	}
	return out
}

func answerText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

type CategorizedResponse struct {
	QuestionID   int64   `json:"question_id"`
	QuestionText string  `json:"question_text"`
	Answer       string  `json:"answer"`
	FilePath     *string `json:"file_path"`
	QuestionType string  `json:"question_type"`
}

type ResponseCategory struct {
	Category  string                `json:"category"`
	Responses []CategorizedResponse `json:"responses"`
}

// CategorizeResponses groups responses by question category, keeping the order
// in which categories first appear.
func CategorizeResponses(responses []*types.ApplicationResponse) []ResponseCategory {
	var out []ResponseCategory
	index := map[string]int{}
	for _, r := range responses {
		category := utils.PtrString(r.Category)
		if category == "" {
			category = DefaultCategory
		}
		i, ok := index[category]
		if !ok {
			i = len(out)
			index[category] = i
			out = append(out, ResponseCategory{Category: category})
		}
		out[i].Responses = append(out[i].Responses, CategorizedResponse{
			QuestionID:   r.QuestionID,
			QuestionText: utils.PtrString(r.QuestionText),
			Answer:       r.Answer,
			FilePath:     r.FilePath,
			QuestionType: utils.PtrString(r.QuestionType),
		})
	}
	return out
}
