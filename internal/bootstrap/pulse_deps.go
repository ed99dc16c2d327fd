package bootstrap

import (
	"context"
	"os"
	"time"

	"feedpulse/adapter/out/dedup"
	"feedpulse/adapter/out/delivery"
	"feedpulse/adapter/out/mongodb"
	"feedpulse/adapter/out/persistence"
	"feedpulse/config"
	"feedpulse/core/agent/llm"
	"feedpulse/core/service/assess"
	"feedpulse/core/service/criticality"
	"feedpulse/core/service/digest"
	"feedpulse/core/service/dispatch"
	"feedpulse/core/service/eligibility"
	"feedpulse/core/service/filter"
	"feedpulse/core/service/pipeline"
	"feedpulse/core/service/scoring"
	"feedpulse/infra/database"
	"feedpulse/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	Mongo  *mongo.Database
	ZLog   zerolog.Logger

	// Repositories
	MessageRepo      *persistence.MessageAdapter
	RecipientRepo    *persistence.RecipientAdapter
	NotificationRepo *persistence.NotificationAdapter
	DigestRepo       *mongodb.DigestAdapter

	// Pipeline stages
	LLMClient  *llm.Client
	Filter     *filter.ContentFilter
	Assessor   *assess.Assessor
	Scorer     *scoring.Scorer
	Classifier *criticality.Classifier
	Decider    *eligibility.Decider

	// Delivery
	Deliverer  *delivery.TelegramClient
	Dispatcher *dispatch.Dispatcher

	// Orchestration
	DuplicateGuard *dedup.RedisGuard
	Pipeline       *pipeline.Pipeline
	DigestBuilder  *digest.Builder
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	deps.ZLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("service", "feedpulse").Logger()

	// Database (sqlx/pq)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Redis
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis connection failed, duplicate suppression disabled: %v", err)
	} else {
		deps.Redis = redisClient
		cleanups = append(cleanups, func() { redisClient.Close() })
		deps.DuplicateGuard = dedup.NewRedisGuard(redisClient, dedup.DefaultTTL)
	}

	// MongoDB (daily digests)
	if cfg.MongoDBURL != "" {
		mongoDB, err := mongodb.NewDatabase(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed, digests disabled: %v", err)
		} else {
			deps.Mongo = mongoDB
			cleanups = append(cleanups, func() {
				mongoDB.Client().Disconnect(context.Background())
			})

			deps.DigestRepo = mongodb.NewDigestAdapter(mongoDB)
			if err := deps.DigestRepo.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure digest indexes: %v", err)
			}
		}
	}

	// Repositories
	deps.MessageRepo = persistence.NewMessageAdapter(deps.DB)
	deps.RecipientRepo = persistence.NewRecipientAdapter(deps.DB)
	deps.NotificationRepo = persistence.NewNotificationAdapter(deps.DB)

	// LLM client for the assessment stage
	if cfg.OpenAIAPIKey != "" {
		deps.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
		logger.Info("LLM client initialized (model: %s)", cfg.LLMModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, assessment runs on heuristic fallback only")
	}

	// Pipeline stages
	deps.Filter = filter.NewContentFilter()

	var assessClient assess.Client
	if deps.LLMClient != nil {
		assessClient = deps.LLMClient
	}
	deps.Assessor = assess.NewAssessor(assessClient, assess.Config{
		Enabled: cfg.AssessEnabled,
		Timeout: time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	deps.Scorer = scoring.NewScorer(scoring.Weights{
		Content:    cfg.WeightContent,
		Assessment: cfg.WeightAssessment,
		Source:     cfg.WeightSource,
		Timeliness: cfg.WeightTimeliness,
	}, time.Now)

	deps.Classifier = criticality.NewClassifier(criticality.Config{
		CriticalThreshold:  cfg.CriticalThreshold,
		EmergencyThreshold: cfg.EmergencyThreshold,
	})

	deps.Decider = eligibility.NewDecider()

	// Delivery (optional, pipeline still scores without it)
	if cfg.TelegramBotToken != "" {
		deps.Deliverer = delivery.NewTelegramClient(cfg.TelegramBotToken)
		pacing := dispatch.NewPacingPolicy(dispatch.PacingConfig{
			PerRecipientInterval: time.Duration(cfg.PacingPerChatMS) * time.Millisecond,
			GlobalInterval:       time.Duration(cfg.PacingGlobalMS) * time.Millisecond,
		})
		deps.Dispatcher = dispatch.NewDispatcher(
			deps.NotificationRepo,
			deps.RecipientRepo,
			deps.Deliverer,
			pacing,
			deps.ZLog,
		)
		logger.Info("Telegram dispatcher initialized")
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, notifications are created but not delivered")
	}

	// Pipeline
	var guard pipeline.DuplicateGuard
	if deps.DuplicateGuard != nil {
		guard = deps.DuplicateGuard
	}
	deps.Pipeline = pipeline.NewPipeline(pipeline.Deps{
		MessageRepo:      deps.MessageRepo,
		RecipientRepo:    deps.RecipientRepo,
		NotificationRepo: deps.NotificationRepo,
		DuplicateGuard:   guard,
		Filter:           deps.Filter,
		Assessor:         deps.Assessor,
		Scorer:           deps.Scorer,
		Classifier:       deps.Classifier,
		Decider:          deps.Decider,
		Dispatcher:       deps.Dispatcher,
		Logger:           deps.ZLog,
	}, pipeline.Config{
		BatchLimit:          cfg.BatchLimit,
		InterMessageDelay:   time.Duration(cfg.InterMessageDelayMS) * time.Millisecond,
		DispatchImmediately: cfg.DispatchImmediately,
	})

	// Digest builder (needs MongoDB for storage)
	if deps.DigestRepo != nil {
		deps.DigestBuilder = digest.NewBuilder(
			deps.MessageRepo,
			deps.NotificationRepo,
			deps.DigestRepo,
			cfg.CriticalThreshold,
			deps.ZLog,
		)
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.PingContext(ctx); err != nil {
		return err
	}

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	return nil
}
