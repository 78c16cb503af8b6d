package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	"github.com/smallbiznis/labdesk/internal/authorization"
	badgedomain "github.com/smallbiznis/labdesk/internal/badge/domain"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	intakedomain "github.com/smallbiznis/labdesk/internal/intake/domain"
	"github.com/smallbiznis/labdesk/internal/observability"
	obslogger "github.com/smallbiznis/labdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/labdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/labdesk/internal/observability/tracing"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	"github.com/smallbiznis/labdesk/internal/ratelimit"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

// RunHTTP serves the engine for the lifetime of the app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	clock           clock.Clock
	policy          *config.PolicyHolder
	authzSvc        authorization.Service
	limiter         formLimiter
	auditSvc        auditdomain.Service
	activeUserSvc   activeuserdomain.Service
	basketSvc       basketdomain.Service
	exemptionSvc    exemptiondomain.Service
	intakeSvc       intakedomain.Service
	badgeSvc        badgedomain.Service
	registrationSvc registrationdomain.Service
	quizSvc         quizdomain.Service
	trainingSvc     trainingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Clock           clock.Clock
	Policy          *config.PolicyHolder
	AuthzSvc        authorization.Service  `optional:"true"`
	Limiter         *ratelimit.FormLimiter `optional:"true"`
	AuditSvc        auditdomain.Service    `optional:"true"`
	ActiveUserSvc   activeuserdomain.Service
	BasketSvc       basketdomain.Service
	ExemptionSvc    exemptiondomain.Service
	IntakeSvc       intakedomain.Service
	BadgeSvc        badgedomain.Service
	RegistrationSvc registrationdomain.Service
	QuizSvc         quizdomain.Service
	TrainingSvc     trainingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		clock:           p.Clock,
		policy:          p.Policy,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		activeUserSvc:   p.ActiveUserSvc,
		basketSvc:       p.BasketSvc,
		exemptionSvc:    p.ExemptionSvc,
		intakeSvc:       p.IntakeSvc,
		badgeSvc:        p.BadgeSvc,
		registrationSvc: p.RegistrationSvc,
		quizSvc:         p.QuizSvc,
		trainingSvc:     p.TrainingSvc,
	}

	if p.Limiter.Enabled() {
		svc.limiter = p.Limiter
	}

	svc.registerAPIRoutes()
	svc.registerLegacyRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.TokenRequired())

	// -------- Active users --------
	api.POST("/active-users/refresh", s.authorize(authorization.ObjectActiveUsers, authorization.ActionActiveUsersRefresh), s.RefreshActiveUsers)

	// -------- Baskets --------
	api.GET("/baskets", s.authorize(authorization.ObjectBasket, authorization.ActionBasketView), s.ListBaskets)
	api.GET("/baskets/purge-candidates", s.authorize(authorization.ObjectBasket, authorization.ActionBasketView), s.ListPurgeCandidates)
	api.GET("/baskets/:id", s.authorize(authorization.ObjectBasket, authorization.ActionBasketView), s.GetBasket)
	api.POST("/baskets/assign", s.authorize(authorization.ObjectBasket, authorization.ActionBasketAssign), s.AssignBasket)
	api.POST("/baskets/return", s.authorize(authorization.ObjectBasket, authorization.ActionBasketReturn), s.ReturnBaskets)
	api.POST("/baskets/reconcile", s.authorize(authorization.ObjectBasket, authorization.ActionBasketReconcile), s.ReconcileBaskets)
	api.POST("/baskets/purge-warnings", s.authorize(authorization.ObjectBasket, authorization.ActionBasketPurge), s.SendPurgeWarnings)

	// -------- Exemptions --------
	api.GET("/exemptions", s.authorize(authorization.ObjectExemption, authorization.ActionExemptionView), s.ListExemptions)
	api.POST("/exemptions", s.authorize(authorization.ObjectExemption, authorization.ActionExemptionManage), s.AddExemption)
	api.DELETE("/exemptions/:user", s.authorize(authorization.ObjectExemption, authorization.ActionExemptionManage), s.RemoveExemption)

	// -------- Forms --------
	api.POST("/forms/:form", s.RateLimited(), s.authorize(authorization.ObjectForm, authorization.ActionFormSubmit), s.SubmitForm)

	// -------- Badges & access forms --------
	api.GET("/badges", s.authorize(authorization.ObjectBadge, authorization.ActionBadgePrint), s.GetBadgeSheet)
	api.POST("/access-forms", s.authorize(authorization.ObjectBadge, authorization.ActionBadgePrint), s.RebuildAccessForms)

	// -------- Emails --------
	api.POST("/emails/:kind", s.authorize(authorization.ObjectEmail, authorization.ActionEmailSend), s.SendEmails)

	// -------- Training --------
	api.GET("/training/sessions", s.authorize(authorization.ObjectTraining, authorization.ActionTrainingView), s.ListTrainingSessions)
	api.GET("/training/triggers", s.authorize(authorization.ObjectTraining, authorization.ActionTrainingView), s.ListQuizTriggers)
	api.POST("/training/group-quiz", s.authorize(authorization.ObjectEmail, authorization.ActionEmailSend), s.SendGroupQuiz)

	// -------- Audit --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAudit, authorization.ActionAuditView), s.ListAuditLogs)
}

func (s *Server) registerLegacyRoutes() {
	s.engine.GET("/exec", s.RateLimited(), s.TokenRequired(), s.Exec)
}
