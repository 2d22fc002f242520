package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"admissions/internal/admissions"
	"admissions/internal/auth"
	"admissions/internal/metrics"
	"admissions/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

// maxMultipartMemory is held in memory per request; larger parts spill to disk.
const maxMultipartMemory = 32 << 20

type NotificationLister interface {
	NotificationsByUser(ctx context.Context, userID string) ([]*types.Notification, error)
}

type Service struct {
	logger        *logrus.Logger
	config        *types.Config
	admissions    *admissions.Service
	accounts      *auth.Accounts
	notifications NotificationLister
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer

	cookie *securecookie.SecureCookie

	handler http.Handler
	server  *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	admissionsSvc *admissions.Service,
	accounts *auth.Accounts,
	notifications NotificationLister,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) (*Service, error) {
	mux := flow.New()

	cookie, err := newSessionCookie(config, logger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		logger:        logger,
		config:        config,
		admissions:    admissionsSvc,
		accounts:      accounts,
		notifications: notifications,
		metrics:       m,
		gatherer:      gatherer,
		cookie:        cookie,
	}
	s.handler = s.StripTrailingSlash(mux)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", config.ServerPort),
		Handler:           s.handler,
		ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.buildRouter(mux)

	return s, nil
}

func newSessionCookie(config *types.Config, logger *logrus.Logger) (*securecookie.SecureCookie, error) {
	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("invalid COOKIE_HASH_KEY: %w", err)
	}
	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, fmt.Errorf("invalid COOKIE_BLOCK_KEY: %w", err)
	}

	if len(hashKey) == 0 {
		logger.Warn("COOKIE_HASH_KEY not set, session cookies will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}

	return securecookie.New(hashKey, blockKey), nil
}

// Handler exposes the routed mux, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}), http.MethodGet)

	r.HandleFunc("/register", s.handlePostRegister, http.MethodPost)
	r.HandleFunc("/login", s.handlePostLogin, http.MethodPost)
	r.HandleFunc("/logout", s.handlePostLogout, http.MethodPost)
	r.HandleFunc("/forgot-password", s.handlePostForgotPassword, http.MethodPost)
	r.HandleFunc("/reset-password", s.handlePostResetPassword, http.MethodPost)

	if s.config.StorageBackend == "local" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.config.UploadDir)))
		r.Handle("/uploads/...", downloadOnly(files), http.MethodGet)
	}

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)
		r.Use(s.RequireRoles(types.RoleApplicant))

		r.HandleFunc("/applicant/pin/validate", s.handlePostValidatePin, http.MethodPost)
		r.HandleFunc("/applicant/pin/verify", s.handlePostVerifyPin, http.MethodPost)
		r.HandleFunc("/applicant/application/start", s.handlePostStartApplication, http.MethodPost)
		r.HandleFunc("/applicant/progress", s.handleGetProgress, http.MethodGet)
		r.HandleFunc("/applicant/progress", s.handlePostProgress, http.MethodPost)
		r.HandleFunc("/applicant/upload", s.handlePostUpload, http.MethodPost)
		r.HandleFunc("/applicant/application", s.handleGetSubmittedApplication, http.MethodGet)
		r.HandleFunc("/applicant/application", s.handlePostCreateApplication, http.MethodPost)
		r.HandleFunc("/applicant/application/submit", s.handlePostSubmitApplication, http.MethodPost)
		r.HandleFunc("/applicant/status", s.handleGetStatus, http.MethodGet)
		r.HandleFunc("/applicant/questions", s.handleGetQuestions, http.MethodGet)
		r.HandleFunc("/applicant/notifications", s.handleGetNotifications, http.MethodGet)
	})

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)
		r.Use(s.RequireRoles(types.RoleBank))

		r.HandleFunc("/bank/payments", s.handlePostPayment, http.MethodPost)
		r.HandleFunc("/bank/payments", s.handleGetPayments, http.MethodGet)
		r.HandleFunc("/bank/payments/mine", s.handleGetMyPayments, http.MethodGet)
		r.HandleFunc("/bank/payments/:id/status", s.handlePutPaymentStatus, http.MethodPut)
		r.HandleFunc("/bank/analytics", s.handleGetBankAnalytics, http.MethodGet)
		r.HandleFunc("/bank/generate-pin", s.handleGetGeneratePin, http.MethodGet)
		r.HandleFunc("/bank/pins/expire", s.handlePostExpirePin, http.MethodPost)
		r.HandleFunc("/bank/pins/cleanup", s.handlePostCleanupPins, http.MethodPost)
	})

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)
		r.Use(s.RequireRoles(types.AdminRoles...))

		r.HandleFunc("/admin/applications", s.handleGetAdminApplications, http.MethodGet)
		r.HandleFunc("/admin/analytics", s.handleGetAdminAnalytics, http.MethodGet)
		r.HandleFunc("/admin/pin-statistics", s.handleGetPinStatistics, http.MethodGet)
		r.HandleFunc("/admin/pin-audit", s.handleGetPinAudit, http.MethodGet)
		r.HandleFunc("/admin/expire-pin", s.handlePostExpirePin, http.MethodPost)
		r.HandleFunc("/admin/cleanup-expired-pins", s.handlePostCleanupPins, http.MethodPost)

		// Decisions and account management stay with the principal.
		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireRoles(types.RolePrincipal))

			r.HandleFunc("/admin/applications/:id/status", s.handlePutApplicationStatus, http.MethodPut)
			r.HandleFunc("/admin/approve-interview", s.handlePostApproveInterview, http.MethodPost)
			r.HandleFunc("/admin/issue-offer", s.handlePostIssueOffer, http.MethodPost)
			r.HandleFunc("/admin/create-user", s.handlePostCreateUser, http.MethodPost)
		})
	})
}

// downloadOnly serves uploaded files as attachments so a browser never renders
// or sniffs applicant content on this origin.
func downloadOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Disposition", "attachment")
		next.ServeHTTP(w, r)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
