package types

type Config struct {
	Environment      string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	ServerPort       uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"0"`
	ReadTimeoutSec   uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec  uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Auth
	JWTSecret       string `envconfig:"JWT_SECRET"`
	JWTIssuer       string `envconfig:"JWT_ISSUER" default:"admissions"`
	TokenTTLMinutes int    `envconfig:"TOKEN_TTL_MINUTES" default:"1440"`

	// Password reset links point at the frontend page that collects the new
	// password; the token is appended as ?token=.
	PasswordResetURL        string `envconfig:"PASSWORD_RESET_URL" default:"http://localhost:5173/reset-password"`
	PasswordResetTTLMinutes int    `envconfig:"PASSWORD_RESET_TTL_MINUTES" default:"60"`

	// Session cookie carrying the access token for browser clients.
	// openssl rand -base64 32
	// to generate values
	CookieName     string `envconfig:"SESSION_COOKIE_NAME" default:"admissions_session"`
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes

	// File storage
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"local"` // local or s3
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads"`
	PublicBaseURL  string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3PublicURL    string `envconfig:"S3_PUBLIC_URL"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`

	// Confirmation email
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASS"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	SMTPFromName string `envconfig:"SMTP_FROM_NAME" default:"Admissions Office"`
}
