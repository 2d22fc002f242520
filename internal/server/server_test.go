package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"admissions/internal/admissions"
	"admissions/internal/admissions/memstore"
	"admissions/internal/auth"
	"admissions/internal/metrics"
	"admissions/internal/server"
	"admissions/internal/storage"
	"admissions/internal/utils"
	"admissions/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type ServerSuite struct {
	suite.Suite

	ctx     context.Context
	store   *memstore.Store
	tokens  *auth.Tokens
	handler http.Handler

	mailer *resetMailer

	bankToken      string
	applicantToken string
	otherToken     string
	adminToken     string
	principalToken string
}

type resetMailer struct {
	links []string
}

func (m *resetMailer) SendPasswordReset(_ context.Context, _ *types.User, link string, _ time.Time) error {
	m.links = append(m.links, link)
	return nil
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.ctx = context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	uploadDir := filepath.Join(s.T().TempDir(), "uploads")
	files, err := storage.NewLocalStorage(uploadDir, "http://test")
	s.Require().NoError(err)

	s.store = memstore.New()
	s.store.PutQuestions(
		&types.Question{ID: 12, Category: "Personal", CategoryOrder: 1, QuestionText: "Full name", QuestionType: "text", SortOrder: 1, IsActive: true},
		&types.Question{ID: 23, Category: "Documents", CategoryOrder: 2, QuestionText: "Birth certificate", QuestionType: "file", SortOrder: 1, IsActive: true},
	)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	svc := admissions.New(logger, admissions.Dependencies{
		Payments:     s.store,
		Applications: s.store,
		Responses:    s.store,
		Progress:     s.store,
		Users:        s.store,
		Questions:    s.store,
		Notifier:     s.store,
		Auditor:      s.store,
		AuditTrail:   s.store,
		Files:        files,
	}, admissions.WithMetrics(m))

	s.tokens, err = auth.NewTokens(testSecret, "admissions", time.Hour)
	s.Require().NoError(err)
	s.mailer = new(resetMailer)
	accounts := auth.NewAccounts(logger, s.store, s.tokens,
		auth.WithAuditor(s.store),
		auth.WithPasswordResets(s.store, s.mailer, "http://localhost:5173/reset-password", time.Hour),
	)

	config := &types.Config{
		Environment:    "development",
		CookieName:     "admissions_session",
		StorageBackend: "local",
		UploadDir:      uploadDir,
	}

	srv, err := server.New(config, logger, svc, accounts, s.store, m, reg)
	s.Require().NoError(err)
	s.handler = srv.Handler()

	s.bankToken = s.userToken("bank-1", types.RoleBank)
	s.applicantToken = s.userToken("applicant-a", types.RoleApplicant)
	s.otherToken = s.userToken("applicant-b", types.RoleApplicant)
	s.adminToken = s.userToken("registrar-1", types.RoleRegistrar)
	s.principalToken = s.userToken("principal-1", types.RolePrincipal)
}

func (s *ServerSuite) userToken(id string, role types.Role) string {
	user := &types.User{
		ID:        id,
		Email:     id + "@example.com",
		Role:      role,
		FirstName: utils.StringPtr("Jane"),
		LastName:  utils.StringPtr("Doe"),
	}
	s.Require().NoError(s.store.CreateUser(s.ctx, user))

	token, _, err := s.tokens.Issue(user)
	s.Require().NoError(err)
	return token
}

func (s *ServerSuite) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(req, token)
}

type filePart struct {
	field    string
	filename string
	content  string
}

func (s *ServerSuite) multipart(path string, fields map[string]string, files []filePart, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		s.Require().NoError(err)
		_, err = part.Write([]byte(f.content))
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.send(req, token)
}

func (s *ServerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	s.T().Helper()
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *ServerSuite) requireStatus(rec *httptest.ResponseRecorder, status int) map[string]any {
	s.T().Helper()
	s.Require().Equal(status, rec.Code, rec.Body.String())
	return s.decode(rec)
}

func (s *ServerSuite) createPayment(reference, pin string) map[string]any {
	rec := s.do(http.MethodPost, "/bank/payments", map[string]any{
		"amount":                500,
		"depositor_name":        "Jane Doe",
		"bank_confirmation_pin": "BANK-" + reference,
		"transaction_reference": reference,
		"application_fee_pin":   pin,
	}, s.bankToken)
	body := s.requireStatus(rec, http.StatusCreated)
	return body["payment"].(map[string]any)
}

func (s *ServerSuite) TestHealthAndMetrics() {
	body := s.requireStatus(s.do(http.MethodGet, "/healthz", nil, ""), http.StatusOK)
	s.Equal("ok", body["status"])

	rec := s.do(http.MethodGet, "/metrics", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "admissions_http_request_duration_seconds")
}

func (s *ServerSuite) TestTrailingSlashRedirects() {
	rec := s.do(http.MethodGet, "/healthz/", nil, "")
	s.Equal(http.StatusMovedPermanently, rec.Code)
	s.Equal("/healthz", rec.Header().Get("Location"))
}

func (s *ServerSuite) TestRegisterAndLogin() {
	rec := s.do(http.MethodPost, "/register", map[string]any{
		"email":      "New.Applicant@Example.com",
		"password":   "correct horse",
		"first_name": "New",
	}, "")
	body := s.requireStatus(rec, http.StatusCreated)
	user := body["user"].(map[string]any)
	s.Equal("new.applicant@example.com", user["email"])
	s.Equal("applicant", user["role"])
	s.NotContains(rec.Body.String(), "password_hash")

	rec = s.do(http.MethodPost, "/register", map[string]any{"email": "new.applicant@example.com", "password": "correct horse"}, "")
	s.requireStatus(rec, http.StatusConflict)

	rec = s.do(http.MethodPost, "/register", map[string]any{"email": "short@example.com", "password": "short"}, "")
	s.requireStatus(rec, http.StatusUnprocessableEntity)

	rec = s.do(http.MethodPost, "/login", map[string]any{"email": "new.applicant@example.com", "password": "wrong password"}, "")
	s.requireStatus(rec, http.StatusUnauthorized)

	rec = s.do(http.MethodPost, "/login", map[string]any{"email": "new.applicant@example.com", "password": "correct horse"}, "")
	body = s.requireStatus(rec, http.StatusOK)
	s.NotEmpty(body["token"])

	cookies := rec.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal("admissions_session", cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/applicant/status", nil)
	req.AddCookie(cookies[0])
	body = s.requireStatus(s.send(req, ""), http.StatusOK)
	s.Equal(true, body["success"])
	s.Empty(body["applications"])
}

func (s *ServerSuite) TestAuthorization() {
	s.requireStatus(s.do(http.MethodGet, "/applicant/status", nil, ""), http.StatusUnauthorized)
	s.requireStatus(s.do(http.MethodGet, "/applicant/status", nil, "not-a-token"), http.StatusUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/applicant/status", nil)
	req.Header.Set("Authorization", "Basic abc")
	s.requireStatus(s.send(req, ""), http.StatusUnauthorized)

	s.requireStatus(s.do(http.MethodGet, "/bank/payments", nil, s.applicantToken), http.StatusForbidden)
	s.requireStatus(s.do(http.MethodGet, "/admin/applications", nil, s.bankToken), http.StatusForbidden)
	s.requireStatus(s.do(http.MethodGet, "/applicant/status", nil, s.adminToken), http.StatusForbidden)
}

func (s *ServerSuite) TestPinVerification() {
	payment := s.createPayment("TXN-001", "1234-5678-9012-3456")
	s.Equal("1234-5678-9012-3456", payment["application_fee_pin"])
	s.Equal("confirmed", payment["payment_status"])

	body := s.requireStatus(s.do(http.MethodPost, "/applicant/pin/validate", map[string]any{"application_pin": "1234567890123456"}, s.applicantToken), http.StatusOK)
	s.Equal("1234-5678-9012-3456", body["pin"])

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/pin/verify", map[string]any{"application_pin": "1234567890123456"}, s.applicantToken), http.StatusOK)
	s.Equal("PIN verified successfully", body["message"])
	summary := body["payment"].(map[string]any)
	s.Equal("TXN-001", summary["transaction_reference"])
	s.Equal("Jane Doe", summary["depositor_name"])

	s.requireStatus(s.do(http.MethodPost, "/applicant/pin/verify", map[string]any{"application_pin": "1234-5678-9012-3456"}, s.applicantToken), http.StatusOK)

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/pin/verify", map[string]any{"application_pin": "1234-5678-9012-3456"}, s.otherToken), http.StatusForbidden)
	s.Equal("PIN_ALREADY_USED_BY_OTHER", body["code"])
	s.Equal(false, body["success"])

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/pin/verify", map[string]any{"application_pin": "9999-9999-9999-9999"}, s.applicantToken), http.StatusNotFound)
	s.Equal("PIN_NOT_FOUND", body["code"])

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/pin/verify", map[string]any{"application_pin": "12-34"}, s.applicantToken), http.StatusUnprocessableEntity)
	s.Equal("INVALID_FORMAT", body["code"])
	s.Equal("Invalid PIN format. PIN must be 16 digits.", body["error"])

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/pin/verify", map[string]any{}, s.applicantToken), http.StatusUnprocessableEntity)
	s.Equal("Application PIN is required", body["error"])
}

func (s *ServerSuite) TestStartApplication() {
	s.createPayment("TXN-001", "1234-5678-9012-3456")

	body := s.requireStatus(s.do(http.MethodPost, "/applicant/application/start", map[string]any{"application_pin": "0000-0000-0000-0000"}, s.applicantToken), http.StatusBadRequest)
	s.Equal("Invalid or expired PIN", body["error"])

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/application/start", map[string]any{"application_pin": "1234-5678-9012-3456"}, s.applicantToken), http.StatusOK)
	firstID := body["application_id"]
	s.NotEmpty(firstID)
	s.Equal(false, body["resumed"])
	s.Equal("TXN-001", body["payment_info"].(map[string]any)["transaction_reference"])

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/application/start", map[string]any{"application_pin": "1234567890123456"}, s.applicantToken), http.StatusOK)
	s.Equal(firstID, body["application_id"])
	s.Equal(true, body["resumed"])

	s.requireStatus(s.do(http.MethodPost, "/applicant/application/start", map[string]any{"application_pin": "1234567890123456"}, s.otherToken), http.StatusForbidden)
}

func (s *ServerSuite) TestAutosaveSubmitAndReview() {
	rec := s.multipart("/applicant/progress", map[string]string{
		"formData":       `{"question_12":"Jane Doe"}`,
		"currentStep":    "2",
		"completedSteps": "[1]",
	}, []filePart{{field: "question_23", filename: "birth.pdf", content: "%PDF-1.4"}}, s.applicantToken)
	body := s.requireStatus(rec, http.StatusOK)
	s.Equal("Progress saved", body["message"])
	stored := body["files_metadata"].(map[string]any)["question_23"].(map[string]any)
	fileURL := stored["url"].(string)
	s.True(strings.HasPrefix(fileURL, "http://test/uploads/"), fileURL)
	s.Equal("birth.pdf", stored["original_name"])

	rec = s.do(http.MethodGet, strings.TrimPrefix(fileURL, "http://test"), nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("%PDF-1.4", rec.Body.String())
	s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
	s.Equal("attachment", rec.Header().Get("Content-Disposition"))

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/progress", map[string]any{
		"formData":       map[string]any{"question_12": "Jane Doe", "wassce_1_subject": "Biology"},
		"currentStep":    3,
		"completedSteps": []int{1, 2},
	}, s.applicantToken), http.StatusOK)
	s.Contains(body["files_metadata"], "question_23")

	body = s.requireStatus(s.do(http.MethodGet, "/applicant/progress", nil, s.applicantToken), http.StatusOK)
	s.Equal(true, body["success"])
	draft := body["draft"].(map[string]any)
	s.Equal(3.0, draft["currentStep"])
	s.Equal("Jane Doe", draft["formData"].(map[string]any)["question_12"])
	s.Contains(draft["filesMetadata"], "question_23")
	s.NotNil(draft["updated_at"])

	body = s.requireStatus(s.do(http.MethodGet, "/applicant/application", nil, s.applicantToken), http.StatusOK)
	s.Equal(true, body["success"])
	s.Contains(body, "application")
	s.Nil(body["application"])

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/application/submit", map[string]any{
		"formData": map[string]any{"question_12": "Jane Doe", "question_23": "birth.pdf", "wassce_1_subject": "Biology"},
	}, s.applicantToken), http.StatusOK)
	s.Equal(false, body["resubmission"])
	number := body["application_number"].(string)
	s.Regexp(regexp.MustCompile(`^APP-\d{4}-001$`), number)
	appID := body["application_id"].(string)

	body = s.requireStatus(s.do(http.MethodGet, "/applicant/application", nil, s.applicantToken), http.StatusOK)
	s.Equal(true, body["success"])
	view := body["application"].(map[string]any)
	s.Equal(appID, view["id"])
	s.Equal(number, view["application_number"])
	categories := view["categories"].([]any)
	s.Require().Len(categories, 2)
	s.Equal("Personal", categories[0].(map[string]any)["category"])
	documents := categories[1].(map[string]any)["responses"].([]any)
	s.Equal(fileURL, documents[0].(map[string]any)["file_path"])

	body = s.requireStatus(s.do(http.MethodGet, "/applicant/progress", nil, s.applicantToken), http.StatusOK)
	s.Empty(body["draft"].(map[string]any)["formData"])

	body = s.requireStatus(s.do(http.MethodPost, "/applicant/application/submit", map[string]any{
		"formData": map[string]any{"question_12": "Jane A. Doe"},
	}, s.applicantToken), http.StatusOK)
	s.Equal(true, body["resubmission"])
	s.Equal(appID, body["application_id"])
	s.Equal(number, body["application_number"])

	body = s.requireStatus(s.do(http.MethodPost, "/admin/approve-interview", map[string]any{"application_id": appID}, s.principalToken), http.StatusOK)
	s.Equal("Interview approved", body["message"])

	body = s.requireStatus(s.do(http.MethodPut, "/admin/applications/"+appID+"/status", map[string]any{"status": "offer_issued"}, s.principalToken), http.StatusOK)
	s.Equal("offer_issued", body["application"].(map[string]any)["application_status"])

	s.requireStatus(s.do(http.MethodPut, "/admin/applications/"+appID+"/status", map[string]any{"status": "draft"}, s.principalToken), http.StatusUnprocessableEntity)
	s.requireStatus(s.do(http.MethodPut, "/admin/applications/missing/status", map[string]any{"status": "offer_issued"}, s.principalToken), http.StatusNotFound)
	s.requireStatus(s.do(http.MethodPost, "/admin/issue-offer", map[string]any{}, s.principalToken), http.StatusUnprocessableEntity)

	body = s.requireStatus(s.do(http.MethodGet, "/admin/applications", nil, s.adminToken), http.StatusOK)
	s.Len(body["applications"], 1)

	body = s.requireStatus(s.do(http.MethodGet, "/admin/analytics", nil, s.adminToken), http.StatusOK)
	s.Equal(1.0, body["analytics"].(map[string]any)["total_applications"])

	body = s.requireStatus(s.do(http.MethodGet, "/applicant/notifications", nil, s.applicantToken), http.StatusOK)
	var messages []string
	for _, n := range body["notifications"].([]any) {
		messages = append(messages, n.(map[string]any)["message"].(string))
	}
	s.Contains(messages, "Your application has been submitted successfully")
	s.Contains(messages, "Your application status has been updated to offer_issued")
}

func (s *ServerSuite) TestUpload() {
	rec := s.multipart("/applicant/upload", map[string]string{"question_key": "question_23"}, nil, s.applicantToken)
	body := s.requireStatus(rec, http.StatusBadRequest)
	s.Equal("No file provided", body["error"])

	rec = s.multipart("/applicant/upload", map[string]string{"question_key": "question_23"},
		[]filePart{{field: "file", filename: "notes.txt", content: "hello"}}, s.applicantToken)
	body = s.requireStatus(rec, http.StatusOK)
	s.Equal("question_23", body["question_key"])
	s.Equal("notes.txt", body["file_metadata"].(map[string]any)["original_name"])

	body = s.requireStatus(s.do(http.MethodGet, "/applicant/progress", nil, s.applicantToken), http.StatusOK)
	s.Contains(body["draft"].(map[string]any)["filesMetadata"], "question_23")

	rec = s.multipart("/applicant/upload", nil, []filePart{{field: "file", filename: "loose.png", content: "png"}}, s.applicantToken)
	body = s.requireStatus(rec, http.StatusOK)
	s.Nil(body["question_key"])
}

func (s *ServerSuite) TestCreateApplicationChecksDocuments() {
	rec := s.multipart("/applicant/application", map[string]string{
		"program_type":           "nursing",
		"form_data[question_12]": "Jane Doe",
	}, []filePart{{field: "transcript", filename: "transcript.exe", content: "MZ"}}, s.applicantToken)
	body := s.requireStatus(rec, http.StatusUnprocessableEntity)
	s.Equal("Invalid file type. Allowed: pdf, jpg, jpeg, png", body["error"])

	rec = s.multipart("/applicant/application", map[string]string{
		"program_type":           "nursing",
		"form_data[question_12]": "Jane Doe",
	}, []filePart{{field: "transcript", filename: "transcript.pdf", content: "%PDF"}}, s.applicantToken)
	body = s.requireStatus(rec, http.StatusCreated)
	appID := body["application_id"].(string)

	app, err := s.store.Application(s.ctx, appID)
	s.Require().NoError(err)
	s.Equal("Jane Doe", app.FormData["question_12"])
	s.Contains(app.FormData["documents"], "transcript")
	s.Equal("nursing", *app.ProgramType)
}

func (s *ServerSuite) TestBankEndpoints() {
	s.createPayment("TXN-001", "1234-5678-9012-3456")
	generated := s.createPayment("TXN-002", "")
	s.Regexp(regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{4}$`), generated["application_fee_pin"])

	rec := s.do(http.MethodPost, "/bank/payments", map[string]any{
		"amount":                500,
		"depositor_name":        "Jane Doe",
		"bank_confirmation_pin": "BANK",
		"transaction_reference": "TXN-001",
	}, s.bankToken)
	s.requireStatus(rec, http.StatusConflict)

	rec = s.do(http.MethodPost, "/bank/payments", map[string]any{"depositor_name": "Jane Doe"}, s.bankToken)
	body := s.requireStatus(rec, http.StatusUnprocessableEntity)
	s.Equal("Missing required field: amount", body["error"])

	body = s.requireStatus(s.do(http.MethodGet, "/bank/payments", nil, s.bankToken), http.StatusOK)
	s.Len(body["payments"], 2)
	body = s.requireStatus(s.do(http.MethodGet, "/bank/payments?status=pending", nil, s.bankToken), http.StatusOK)
	s.Len(body["payments"], 0)
	s.requireStatus(s.do(http.MethodGet, "/bank/payments?status=bogus", nil, s.bankToken), http.StatusUnprocessableEntity)

	body = s.requireStatus(s.do(http.MethodGet, "/bank/payments/mine", nil, s.bankToken), http.StatusOK)
	s.Equal(2.0, body["count"])
	s.Equal("bank-1", body["user_id"])

	body = s.requireStatus(s.do(http.MethodGet, "/bank/analytics", nil, s.bankToken), http.StatusOK)
	s.Equal(2.0, body["total_count"])
	s.Equal("1000", body["total_payments"])
	s.Len(body["confirmed_payments"], 2)

	body = s.requireStatus(s.do(http.MethodGet, "/bank/generate-pin", nil, s.bankToken), http.StatusOK)
	s.Regexp(regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{4}$`), body["pin"])

	id := generated["id"].(string)
	s.requireStatus(s.do(http.MethodPut, "/bank/payments/"+id+"/status", map[string]any{"status": "bogus"}, s.bankToken), http.StatusUnprocessableEntity)
	s.requireStatus(s.do(http.MethodPut, "/bank/payments/missing/status", map[string]any{"status": "pending"}, s.bankToken), http.StatusNotFound)
	s.requireStatus(s.do(http.MethodPut, "/bank/payments/"+id+"/status", map[string]any{"status": "pending"}, s.bankToken), http.StatusOK)

	body = s.requireStatus(s.do(http.MethodPost, "/bank/pins/expire", map[string]any{"pin": "1234567890123456"}, s.bankToken), http.StatusOK)
	s.Equal("expired", body["payment"].(map[string]any)["payment_status"])
	s.requireStatus(s.do(http.MethodPost, "/applicant/pin/verify", map[string]any{"application_pin": "1234-5678-9012-3456"}, s.applicantToken), http.StatusNotFound)
	s.requireStatus(s.do(http.MethodPost, "/bank/pins/expire", map[string]any{"pin": "1234567890123456"}, s.bankToken), http.StatusNotFound)
	s.requireStatus(s.do(http.MethodPost, "/bank/pins/expire", map[string]any{}, s.bankToken), http.StatusUnprocessableEntity)

	body = s.requireStatus(s.do(http.MethodPost, "/bank/pins/cleanup", nil, s.bankToken), http.StatusOK)
	s.Equal(0.0, body["expired_count"])
}

func (s *ServerSuite) TestInvalidJSON() {
	req := httptest.NewRequest(http.MethodPost, "/bank/payments", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	body := s.requireStatus(s.send(req, s.bankToken), http.StatusBadRequest)
	s.Equal("Invalid JSON body", body["error"])
}

func (s *ServerSuite) TestReviewDecisionsNeedPrincipal() {
	app, _, err := s.store.SaveSubmission(s.ctx, "applicant-a", types.FormData{"question_12": "Jane Doe"}, nil, time.Now())
	s.Require().NoError(err)
	ref := map[string]any{"application_id": app.ID}

	body := s.requireStatus(s.do(http.MethodPost, "/admin/approve-interview", ref, s.adminToken), http.StatusForbidden)
	s.Equal("Forbidden", body["error"])
	s.requireStatus(s.do(http.MethodPost, "/admin/issue-offer", ref, s.adminToken), http.StatusForbidden)
	s.requireStatus(s.do(http.MethodPut, "/admin/applications/"+app.ID+"/status", map[string]any{"status": "offer_issued"}, s.adminToken), http.StatusForbidden)
	s.requireStatus(s.do(http.MethodPost, "/admin/approve-interview", ref, s.bankToken), http.StatusForbidden)
	s.requireStatus(s.do(http.MethodPost, "/admin/approve-interview", ref, ""), http.StatusUnauthorized)

	stored, err := s.store.Application(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(types.ApplicationStatusSubmitted, stored.ApplicationStatus)

	body = s.requireStatus(s.do(http.MethodPost, "/admin/issue-offer", ref, s.principalToken), http.StatusOK)
	s.Equal("offer_issued", body["application"].(map[string]any)["application_status"])
}

func (s *ServerSuite) TestAdminPinManagement() {
	s.createPayment("TXN-001", "1234-5678-9012-3456")
	s.createPayment("TXN-002", "2222-3333-4444-5555")
	s.createPayment("TXN-003", "6666-7777-8888-9999")

	s.requireStatus(s.do(http.MethodPost, "/applicant/pin/verify", map[string]any{"application_pin": "2222333344445555"}, s.applicantToken), http.StatusOK)

	body := s.requireStatus(s.do(http.MethodPost, "/admin/expire-pin", map[string]any{"pin": "1234567890123456"}, s.adminToken), http.StatusOK)
	s.Equal("PIN expired successfully", body["message"])
	s.Equal("expired", body["payment"].(map[string]any)["payment_status"])
	s.requireStatus(s.do(http.MethodPost, "/admin/expire-pin", map[string]any{}, s.adminToken), http.StatusUnprocessableEntity)
	s.requireStatus(s.do(http.MethodPost, "/admin/expire-pin", map[string]any{"pin": "6666777788889999"}, s.applicantToken), http.StatusForbidden)

	body = s.requireStatus(s.do(http.MethodPost, "/admin/cleanup-expired-pins", nil, s.adminToken), http.StatusOK)
	s.Equal("Cleanup completed", body["message"])
	s.Equal(0.0, body["expired_count"])

	body = s.requireStatus(s.do(http.MethodGet, "/admin/pin-statistics", nil, s.adminToken), http.StatusOK)
	s.Equal(true, body["success"])
	stats := body["statistics"].(map[string]any)
	s.Equal(3.0, stats["total_pins_issued"])
	s.Equal(1.0, stats["pins_used"])
	s.Equal(1.0, stats["pins_unused"])
	s.Equal(1.0, stats["pins_expired"])

	body = s.requireStatus(s.do(http.MethodGet, "/admin/pin-audit", nil, s.adminToken), http.StatusOK)
	s.Equal(true, body["success"])
	entries := body["audit"].([]any)
	s.Require().Len(entries, 5)
	newest := entries[0].(map[string]any)
	s.Equal(admissions.ActionExpirePin, newest["action"])
	s.Equal("TXN-001", newest["transaction_reference"])
	s.Equal("registrar-1@example.com", newest["email"])
	verified := entries[1].(map[string]any)
	s.Equal(admissions.ActionVerifyPin, verified["action"])
	s.Equal("applicant-a@example.com", verified["email"])
	s.Equal(map[string]any{"limit": 100.0, "offset": 0.0}, body["pagination"])

	body = s.requireStatus(s.do(http.MethodGet, "/admin/pin-audit?limit=2&offset=1", nil, s.adminToken), http.StatusOK)
	entries = body["audit"].([]any)
	s.Require().Len(entries, 2)
	s.Equal(admissions.ActionVerifyPin, entries[0].(map[string]any)["action"])
	s.Equal(map[string]any{"limit": 2.0, "offset": 1.0}, body["pagination"])

	s.requireStatus(s.do(http.MethodGet, "/admin/pin-audit?limit=ten", nil, s.adminToken), http.StatusUnprocessableEntity)
	s.requireStatus(s.do(http.MethodGet, "/admin/pin-audit?offset=-1", nil, s.adminToken), http.StatusUnprocessableEntity)
	s.requireStatus(s.do(http.MethodGet, "/admin/pin-statistics", nil, s.bankToken), http.StatusForbidden)
}

func (s *ServerSuite) TestCreateUser() {
	rec := s.do(http.MethodPost, "/admin/create-user", map[string]any{
		"email":      "Finance.Officer@School.example",
		"password":   "correct horse",
		"first_name": "Fin",
		"role":       "finance",
	}, s.principalToken)
	body := s.requireStatus(rec, http.StatusCreated)
	user := body["user"].(map[string]any)
	s.Equal("finance.officer@school.example", user["email"])
	s.Equal("finance", user["role"])
	s.NotContains(rec.Body.String(), "password_hash")

	var created *types.AuditEntry
	for _, e := range s.store.AuditEntries() {
		if e.Action == "create_user" {
			created = e
		}
	}
	s.Require().NotNil(created)
	s.Equal("principal-1", created.UserID)
	s.Equal(user["id"], created.Details["user_id"])

	body = s.requireStatus(s.do(http.MethodPost, "/login", map[string]any{"email": "finance.officer@school.example", "password": "correct horse"}, ""), http.StatusOK)
	s.NotEmpty(body["token"])

	s.requireStatus(s.do(http.MethodPost, "/admin/create-user", map[string]any{
		"email": "sneaky@school.example", "password": "correct horse", "role": "principal",
	}, s.adminToken), http.StatusForbidden)

	body = s.requireStatus(s.do(http.MethodPost, "/admin/create-user", map[string]any{
		"email": "kid@example.com", "password": "correct horse", "role": "applicant",
	}, s.principalToken), http.StatusUnprocessableEntity)
	s.Equal("Role must be a staff role", body["error"])

	s.requireStatus(s.do(http.MethodPost, "/admin/create-user", map[string]any{
		"email": "finance.officer@school.example", "password": "correct horse", "role": "it",
	}, s.principalToken), http.StatusConflict)
}

func (s *ServerSuite) TestPasswordReset() {
	s.requireStatus(s.do(http.MethodPost, "/register", map[string]any{"email": "jane@example.com", "password": "correct horse"}, ""), http.StatusCreated)

	body := s.requireStatus(s.do(http.MethodPost, "/forgot-password", map[string]any{"email": "nobody@example.com"}, ""), http.StatusOK)
	s.Equal(true, body["success"])
	s.Empty(s.mailer.links)

	s.requireStatus(s.do(http.MethodPost, "/forgot-password", map[string]any{"email": "jane@example.com"}, ""), http.StatusOK)
	s.Require().Len(s.mailer.links, 1)
	link, err := url.Parse(s.mailer.links[0])
	s.Require().NoError(err)
	s.True(strings.HasPrefix(s.mailer.links[0], "http://localhost:5173/reset-password?token="), s.mailer.links[0])
	token := link.Query().Get("token")

	body = s.requireStatus(s.do(http.MethodPost, "/reset-password", map[string]any{"token": token}, ""), http.StatusBadRequest)
	s.Equal("Missing required fields", body["error"])
	body = s.requireStatus(s.do(http.MethodPost, "/reset-password", map[string]any{"token": "bogus", "password": "brand new password"}, ""), http.StatusBadRequest)
	s.Equal("Invalid or expired reset token", body["error"])

	body = s.requireStatus(s.do(http.MethodPost, "/reset-password", map[string]any{"token": token, "password": "brand new password"}, ""), http.StatusOK)
	s.Equal("Password reset successfully", body["message"])

	s.requireStatus(s.do(http.MethodPost, "/login", map[string]any{"email": "jane@example.com", "password": "correct horse"}, ""), http.StatusUnauthorized)
	s.requireStatus(s.do(http.MethodPost, "/login", map[string]any{"email": "jane@example.com", "password": "brand new password"}, ""), http.StatusOK)

	body = s.requireStatus(s.do(http.MethodPost, "/reset-password", map[string]any{"token": token, "password": "another password"}, ""), http.StatusBadRequest)
	s.Equal("Invalid or expired reset token", body["error"])
}
