package config

import (
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTP     SMTPConfig
	Storage  StorageConfig
	Sheets   SheetNames
	Calendar CalendarConfig
	Contacts ContactConfig
	Forms    FormLinks

	ExemptionsFile string

	Scheduler SchedulerConfig
	RateLimit RateLimitConfig

	APITokens []APIToken
}

// ObservabilityConfig tunes logging and tracing. Tracing is off unless an operator
// points it at a collector.
type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	SQLLogLevel   string
	SlowQuery     time.Duration
	Tracing       bool
	OTLPProtocol  string
	SamplingRatio float64
}

// RateLimitConfig throttles public form submissions per client. It needs Redis.
type RateLimitConfig struct {
	Enabled   bool
	FormRate  float64
	FormBurst int
}

type SchedulerConfig struct {
	Enabled            bool
	RunInterval        time.Duration
	Jobs               []string
	ActiveUsersEvery   time.Duration
	PurgeWarningsEvery time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type StorageConfig struct {
	Type      string
	Root      string
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	LogsPrefix string
	GuideKey   string
}

// SheetNames maps each workflow table to its name in the tabular store.
type SheetNames struct {
	ActiveUsers        string
	BasketIndex        string
	BasketRegistration string
	Registration       string
	LabAccess          string
	Quiz               string
	TrainingRequests   string
}

type CalendarConfig struct {
	ID            string
	TrainingTitle string
	TimeZone      string
}

// Location resolves TimeZone, falling back to UTC when it is empty or unknown.
func (c CalendarConfig) Location() *time.Location {
	if strings.TrimSpace(c.TimeZone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.TimeZone))
	if err != nil {
		return time.UTC
	}
	return loc
}

type ContactConfig struct {
	AccessOfficerEmail string
	LabAccessTextTo    string
	ReplyTo            string
	// AccessFormSigner signs generated building access forms.
	AccessFormSigner string
}

// FormLinks are URL templates. Placeholders like {eid} are expanded by ExpandURL.
type FormLinks struct {
	Quiz            string
	Onboarding      string
	PurgeCorrection string
	LabAccess       string
	TrainingRequest string
	TrainingSlides  string
	BuildingAccess  string
	BasketRequest   string
}

type APIToken struct {
	Name string
	Role string
	Hash string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "labdesk"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Observability: ObservabilityConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			SQLLogLevel:   strings.ToLower(strings.TrimSpace(getenv("SQL_LOG_LEVEL", "warn"))),
			SlowQuery:     getenvDuration("SQL_SLOW_QUERY", 500*time.Millisecond),
			Tracing:       getenvBool("OTEL_ENABLED", false),
			OTLPProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "labdesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "noreply@labdesk.local"),
			FromName: getenv("SMTP_FROM_NAME", "MER Cleanroom"),
		},
		Storage: StorageConfig{
			Type:       strings.ToLower(getenv("STORAGE_TYPE", "filesystem")),
			Root:       getenv("STORAGE_ROOT", "./data"),
			Bucket:     getenv("STORAGE_BUCKET", ""),
			Prefix:     getenv("STORAGE_PREFIX", ""),
			Region:     getenv("STORAGE_REGION", "us-east-1"),
			Endpoint:   getenv("STORAGE_ENDPOINT", ""),
			AccessKey:  getenv("STORAGE_ACCESS_KEY", ""),
			SecretKey:  getenv("STORAGE_SECRET_KEY", ""),
			LogsPrefix: getenv("USAGE_LOGS_PREFIX", "usage-logs"),
			GuideKey:   getenv("BASKET_GUIDE_KEY", "guides/basket-guide.pdf"),
		},
		Sheets: SheetNames{
			ActiveUsers:        getenv("SHEET_ACTIVE_USERS", "Active Users"),
			BasketIndex:        getenv("SHEET_BASKET_INDEX", "Basket Index"),
			BasketRegistration: getenv("SHEET_BASKET_REGISTRATION", "Basket Registration"),
			Registration:       getenv("SHEET_REGISTRATION", "MER Directory & Building Access Registration"),
			LabAccess:          getenv("SHEET_LAB_ACCESS", "Lab Access & Sedona Registration"),
			Quiz:               getenv("SHEET_QUIZ", "Quiz OH 102"),
			TrainingRequests:   getenv("SHEET_TRAINING_REQUESTS", "Safety Training Requests"),
		},
		Calendar: CalendarConfig{
			ID:            getenv("CALENDAR_ID", "primary"),
			TrainingTitle: getenv("TRAINING_EVENT_TITLE", "Training: OH 102 | Description: Site-Specific Hazard Communication"),
			TimeZone:      getenv("CALENDAR_TIMEZONE", "America/Chicago"),
		},
		Contacts: ContactConfig{
			AccessOfficerEmail: strings.TrimSpace(getenv("ACCESS_OFFICER_EMAIL", "")),
			LabAccessTextTo:    strings.TrimSpace(getenv("LAB_ACCESS_TEXT_TO", "")),
			ReplyTo:            strings.TrimSpace(getenv("REPLY_TO_EMAIL", "")),
			AccessFormSigner:   getenv("ACCESS_FORM_SIGNER", "MER Cleanroom Staff"),
		},
		Forms: FormLinks{
			Quiz:            getenv("FORM_QUIZ_URL", "https://forms.mer.example.edu/oh102-quiz?eid={eid}&first={first}&last={last}"),
			Onboarding:      getenv("FORM_ONBOARDING_URL", "https://forms.mer.example.edu/registration?eid={eid}&email={email}&first={first}&last={last}&lab_access={lab_access}"),
			PurgeCorrection: getenv("FORM_PURGE_URL", "https://forms.mer.example.edu/basket-purge?eid={eid}&first={first}&last={last}"),
			LabAccess:       getenv("FORM_LAB_ACCESS_URL", ""),
			TrainingRequest: getenv("FORM_TRAINING_REQUEST_URL", "https://forms.mer.example.edu/training-request?email={email}"),
			TrainingSlides:  getenv("FORM_TRAINING_SLIDES_URL", "https://forms.mer.example.edu/oh102-slides"),
			BuildingAccess:  getenv("FORM_BUILDING_ACCESS_URL", "https://forms.mer.example.edu/registration?email={email}&lab_access=No"),
			BasketRequest:   getenv("FORM_BASKET_REQUEST_URL", "https://forms.mer.example.edu/basket-request?eid={eid}&phone={phone}&email={email}&first={first}&last={last}"),
		},
		ExemptionsFile: getenv("EXEMPTIONS_FILE", "./data/basket-exemptions.yml"),
		Scheduler: SchedulerConfig{
			Enabled:            getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:        getenvDuration("SCHEDULER_INTERVAL", time.Minute),
			Jobs:               splitList(getenv("SCHEDULER_JOBS", "")),
			ActiveUsersEvery:   getenvDuration("SCHEDULER_ACTIVE_USERS_EVERY", 24*time.Hour),
			PurgeWarningsEvery: getenvDuration("SCHEDULER_PURGE_WARNINGS_EVERY", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:   getenvBool("RATE_LIMIT_ENABLED", false),
			FormRate:  getenvFloat("RATE_LIMIT_FORM_RATE", 0.2),
			FormBurst: getenvInt("RATE_LIMIT_FORM_BURST", 10),
		},
		APITokens: parseTokens(getenv("API_TOKENS", "")),
	}

	return cfg
}

var placeholder = regexp.MustCompile(`\{[a-z_]+\}`)

// ExpandURL replaces {key} placeholders with query-escaped values.
// Placeholders without a value are left empty.
func ExpandURL(tmpl string, values map[string]string) string {
	if tmpl == "" {
		return tmpl
	}
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", url.QueryEscape(strings.TrimSpace(value)))
	}
	if len(pairs) > 0 {
		tmpl = strings.NewReplacer(pairs...).Replace(tmpl)
	}
	return placeholder.ReplaceAllString(tmpl, "")
}

// parseTokens reads "name:role:bcrypt-hash" triples separated by commas.
func parseTokens(raw string) []APIToken {
	parts := strings.Split(raw, ",")
	out := make([]APIToken, 0, len(parts))
	for _, p := range parts {
		fields := strings.SplitN(strings.TrimSpace(p), ":", 3)
		if len(fields) != 3 {
			continue
		}
		out = append(out, APIToken{
			Name: strings.TrimSpace(fields[0]),
			Role: strings.ToLower(strings.TrimSpace(fields[1])),
			Hash: strings.TrimSpace(fields[2]),
		})
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
