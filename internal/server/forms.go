package server

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"admissions/internal/admissions"
	"admissions/pkg/types"
)

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseForm parses multipart and urlencoded bodies alike.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxMultipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// formUploads opens every file part of a parsed multipart form. The returned
// closer must be called once the uploads have been consumed.
func formUploads(r *http.Request) ([]admissions.Upload, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}

	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	var uploads []admissions.Upload
	for _, field := range fields {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}
		upload, f, err := openUpload(field, headers[0])
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		opened = append(opened, f)
		uploads = append(uploads, upload)
	}

	return uploads, closeAll, nil
}

func openUpload(field string, fh *multipart.FileHeader) (admissions.Upload, multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return admissions.Upload{}, nil, err
	}
	return admissions.Upload{
		Field:       field,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

// draftForm is the multipart shape of autosave and submit requests: the answers
// travel as a JSON document next to the file parts.
type draftForm struct {
	FormData       string `form:"formData"`
	CurrentStep    int    `form:"currentStep"`
	CompletedSteps string `form:"completedSteps"`
}

func (f draftForm) formData() (types.FormData, error) {
	data := types.FormData{}
	if strings.TrimSpace(f.FormData) == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(f.FormData), &data); err != nil {
		return nil, errInvalidJSON
	}
	return data, nil
}

func (f draftForm) completedSteps() ([]int, error) {
	steps := []int{}
	if strings.TrimSpace(f.CompletedSteps) == "" {
		return steps, nil
	}
	if err := json.Unmarshal([]byte(f.CompletedSteps), &steps); err != nil {
		return nil, errInvalidJSON
	}
	return steps, nil
}

// draftBody is the JSON shape of the same requests.
type draftBody struct {
	FormData       types.FormData `json:"formData"`
	CurrentStep    int            `json:"currentStep"`
	CompletedSteps []int          `json:"completedSteps"`
}

type draftRequest struct {
	FormData       types.FormData
	CurrentStep    int
	CompletedSteps []int
	Uploads        []admissions.Upload
	close          func()
}

// readDraft decodes an autosave or submit request from either a multipart form
// or a JSON body.
func readDraft(r *http.Request) (*draftRequest, error) {
	if !isMultipart(r) {
		var body draftBody
		if err := decodeJSON(r, &body); err != nil {
			return nil, err
		}
		return &draftRequest{
			FormData:       body.FormData,
			CurrentStep:    body.CurrentStep,
			CompletedSteps: body.CompletedSteps,
			close:          func() {},
		}, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, errInvalidForm
	}

	var f draftForm
	if err := decoder.Decode(&f, r.MultipartForm.Value); err != nil {
		return nil, errInvalidForm
	}
	formData, err := f.formData()
	if err != nil {
		return nil, err
	}
	steps, err := f.completedSteps()
	if err != nil {
		return nil, err
	}

	uploads, closer, err := formUploads(r)
	if err != nil {
		return nil, err
	}

	return &draftRequest{
		FormData:       formData,
		CurrentStep:    f.CurrentStep,
		CompletedSteps: steps,
		Uploads:        uploads,
		close:          closer,
	}, nil
}

// catalogForm is the createApplication request. form_data[<key>] fields
// become the draft answers.
type catalogForm struct {
	ProgramType string            `form:"program_type"`
	FormData    map[string]string `form:"form_data"`
}

type uploadForm struct {
	QuestionKey string `form:"question_key"`
}

type statusBody struct {
	Status string `json:"status"`
}

type applicationRefBody struct {
	ApplicationID string `json:"application_id"`
}
