// Package testenv wires the lab services over in-memory backends for tests.
package testenv

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	activeuserservice "github.com/smallbiznis/labdesk/internal/activeuser/service"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	auditrepository "github.com/smallbiznis/labdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/labdesk/internal/audit/service"
	badgedomain "github.com/smallbiznis/labdesk/internal/badge/domain"
	badgeservice "github.com/smallbiznis/labdesk/internal/badge/service"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	basketservice "github.com/smallbiznis/labdesk/internal/basket/service"
	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	calendarrepository "github.com/smallbiznis/labdesk/internal/calendar/repository"
	calendarservice "github.com/smallbiznis/labdesk/internal/calendar/service"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	exemptionrepository "github.com/smallbiznis/labdesk/internal/exemption/repository"
	exemptionservice "github.com/smallbiznis/labdesk/internal/exemption/service"
	intakedomain "github.com/smallbiznis/labdesk/internal/intake/domain"
	intakeservice "github.com/smallbiznis/labdesk/internal/intake/service"
	"github.com/smallbiznis/labdesk/internal/lock"
	"github.com/smallbiznis/labdesk/internal/notification"
	"github.com/smallbiznis/labdesk/internal/providers/email"
	"github.com/smallbiznis/labdesk/internal/providers/pdf"
	"github.com/smallbiznis/labdesk/internal/providers/webform"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	quizservice "github.com/smallbiznis/labdesk/internal/quiz/service"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	registrationservice "github.com/smallbiznis/labdesk/internal/registration/service"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/smallbiznis/labdesk/internal/sheet/sheettest"
	"github.com/smallbiznis/labdesk/internal/storage"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	trainingrepository "github.com/smallbiznis/labdesk/internal/training/repository"
	trainingservice "github.com/smallbiznis/labdesk/internal/training/service"
	usagelogdomain "github.com/smallbiznis/labdesk/internal/usagelog/domain"
	usagelogservice "github.com/smallbiznis/labdesk/internal/usagelog/service"
	"github.com/smallbiznis/labdesk/internal/usagelog/source"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Now is the default wall time of every environment.
var Now = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type Env struct {
	Config config.Config
	Policy *config.PolicyHolder
	Clock  *clock.FakeClock
	Log    *zap.Logger
	DB     *gorm.DB
	Locker lock.Locker
	Bucket *storage.Memory
	Mail   *email.Recorder
	Forms  *webform.Recorder
	PDF    pdf.Provider
	GenID  *snowflake.Node

	Sheets      sheetdomain.Service
	Exemptions  exemptiondomain.Service
	Usage       usagelogdomain.Service
	ActiveUsers activeuserdomain.Service
	Notifier    *notification.Notifier
	Baskets     basketdomain.Service

	Quiz         quizdomain.Service
	Calendar     calendardomain.Service
	Training     trainingdomain.Service
	Registration registrationdomain.Service
	Badges       badgedomain.Service
	Intake       intakedomain.Service
	Audit        auditdomain.Service
}

// Config returns the configuration every environment starts from.
func Config(t *testing.T) config.Config {
	return config.Config{
		AppName:     "labdesk",
		Environment: "test",
		Storage: config.StorageConfig{
			Type:       "memory",
			LogsPrefix: "usage-logs",
			GuideKey:   "guides/basket-guide.pdf",
		},
		Sheets: config.SheetNames{
			ActiveUsers:        "Active Users",
			BasketIndex:        "Basket Index",
			BasketRegistration: "Basket Registration",
			Registration:       "MER Directory & Building Access Registration",
			LabAccess:          "Lab Access & Sedona Registration",
			Quiz:               "Quiz OH 102",
			TrainingRequests:   "Safety Training Requests",
		},
		Calendar: config.CalendarConfig{
			ID:            "lab@test.edu",
			TrainingTitle: "Training: OH 102 | Description: Site-Specific Hazard Communication",
		},
		Contacts: config.ContactConfig{
			AccessOfficerEmail: "officer@test.edu",
			LabAccessTextTo:    "5550100@sms.test",
			ReplyTo:            "lab@test.edu",
		},
		Forms: config.FormLinks{
			Quiz:            "https://forms.test/quiz?eid={eid}&first={first}&last={last}",
			Onboarding:      "https://forms.test/registration?eid={eid}&email={email}&first={first}&last={last}&lab_access={lab_access}",
			PurgeCorrection: "https://forms.test/purge?eid={eid}&first={first}&last={last}",
			TrainingRequest: "https://forms.test/training?email={email}",
			BuildingAccess:  "https://forms.test/registration?email={email}&lab_access=No",
			BasketRequest:   "https://forms.test/basket?eid={eid}&phone={phone}&email={email}&first={first}&last={last}",
		},
		ExemptionsFile: filepath.Join(t.TempDir(), "exemptions.yml"),
	}
}

// New builds an environment. mutate, when given, adjusts the config before wiring.
func New(t *testing.T, mutate ...func(*config.Config)) *Env {
	t.Helper()

	cfg := Config(t)
	for _, m := range mutate {
		m(&cfg)
	}
	clk := clock.NewFakeClock(Now)
	log := zap.NewNop()
	sheets, db := sheettest.New(t, clk, Models()...)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	env := &Env{
		Config: cfg,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicy()),
		Clock:  clk,
		Log:    log,
		DB:     db,
		Locker: lock.NewLocal(),
		Bucket: storage.NewMemory(),
		Mail:   email.NewRecorder(),
		Forms:  &webform.Recorder{},
		PDF:    pdf.New(),
		GenID:  node,
		Sheets: sheets,
	}

	env.Exemptions = exemptionservice.New(exemptionservice.Params{
		Log:   log,
		Clock: clk,
		Repo:  exemptionrepository.NewFileStore(cfg.ExemptionsFile, log),
	})
	env.Usage = usagelogservice.New(usagelogservice.Params{
		Log:    log,
		Source: source.NewBucket(env.Bucket, cfg.Storage.LogsPrefix),
	})
	env.ActiveUsers = activeuserservice.New(activeuserservice.Params{
		Config: cfg,
		Policy: env.Policy,
		Log:    log,
		Clock:  clk,
		Locker: env.Locker,
		Sheets: sheets,
		Usage:  env.Usage,
	})
	env.Notifier = notification.New(notification.Params{
		Config:   cfg,
		Provider: env.Mail,
		Log:      log,
	})
	env.Baskets = basketservice.New(basketservice.Params{
		Config:      cfg,
		Log:         log,
		Clock:       clk,
		Locker:      env.Locker,
		Sheets:      sheets,
		ActiveUsers: env.ActiveUsers,
		Exemptions:  env.Exemptions,
		Notifier:    env.Notifier,
		PDF:         env.PDF,
		Bucket:      env.Bucket,
	})
	env.Quiz = quizservice.New(quizservice.Params{
		Config:   cfg,
		Policy:   env.Policy,
		Log:      log,
		Sheets:   sheets,
		Notifier: env.Notifier,
	})
	env.Calendar = calendarservice.New(calendarservice.Params{
		Config: cfg,
		DB:     db,
		Log:    log,
		Clock:  clk,
		GenID:  node,
		Repo:   calendarrepository.Provide(),
	})
	env.Training = trainingservice.New(trainingservice.Params{
		Config:   cfg,
		DB:       db,
		Log:      log,
		Clock:    clk,
		GenID:    node,
		Repo:     trainingrepository.Provide(),
		Calendar: env.Calendar,
		Sheets:   sheets,
		Quiz:     env.Quiz,
	})
	env.Registration = registrationservice.New(registrationservice.Params{
		Config:    cfg,
		Log:       log,
		Clock:     clk,
		Sheets:    sheets,
		Calendar:  env.Calendar,
		Notifier:  env.Notifier,
		PDF:       env.PDF,
		Bucket:    env.Bucket,
		Submitter: env.Forms,
	})
	env.Badges = badgeservice.New(badgeservice.Params{
		Config: cfg,
		Log:    log,
		Sheets: sheets,
		PDF:    env.PDF,
	})
	env.Intake = intakeservice.New(intakeservice.Params{
		Config:       cfg,
		Log:          log,
		Clock:        clk,
		Sheets:       sheets,
		Training:     env.Training,
		Quiz:         env.Quiz,
		Registration: env.Registration,
		Baskets:      env.Baskets,
	})
	env.Audit = auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		Clock: clk,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
	return env
}

// Models lists the gorm models beyond the sheet tables that tests migrate.
func Models() []any {
	return []any{&calendardomain.Event{}, &trainingdomain.QuizTrigger{}, &auditdomain.AuditLog{}}
}

// Seed writes a sheet, failing the test on error.
func (e *Env) Seed(t *testing.T, name string, headers []string, rows ...[]string) {
	t.Helper()
	sheettest.Seed(t, e.Sheets, name, headers, rows...)
}

// Table reads a sheet, failing the test on error.
func (e *Env) Table(t *testing.T, name string) *sheetdomain.Table {
	t.Helper()
	table, err := e.Sheets.GetTable(t.Context(), name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return table
}
