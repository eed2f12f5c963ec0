package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	clientrepo "github.com/yungbote/darx-site-generator/internal/data/repos/clients"
	siterepo "github.com/yungbote/darx-site-generator/internal/data/repos/sites"
	"github.com/yungbote/darx-site-generator/internal/pipeline"
	"github.com/yungbote/darx-site-generator/internal/pipeline/codegen"
	"github.com/yungbote/darx-site-generator/internal/platform/builderio"
	"github.com/yungbote/darx-site-generator/internal/platform/github"
	"github.com/yungbote/darx-site-generator/internal/platform/llm"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
	"github.com/yungbote/darx-site-generator/internal/platform/redisx"
	"github.com/yungbote/darx-site-generator/internal/platform/registry"
	"github.com/yungbote/darx-site-generator/internal/platform/sealer"
	"github.com/yungbote/darx-site-generator/internal/platform/vercel"
	"github.com/yungbote/darx-site-generator/internal/services"
)

type Repos struct {
	Clients     clientrepo.ClientRepo
	Onboarding  clientrepo.OnboardingRepo
	Tokens      clientrepo.TokenRepo
	Generations siterepo.GenerationRepo
	Backups     siterepo.BackupRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Clients:     clientrepo.NewClientRepo(db, log),
		Onboarding:  clientrepo.NewOnboardingRepo(db, log),
		Tokens:      clientrepo.NewTokenRepo(db, log),
		Generations: siterepo.NewGenerationRepo(db, log),
		Backups:     siterepo.NewBackupRepo(db, log),
	}
}

type Services struct {
	Orchestrator *pipeline.Orchestrator
	Editor       *pipeline.Editor
	Onboarding   *services.OnboardingService
	Auth         *services.OperatorAuth
	Backups      *services.BackupService
	Registry     *registry.Client
}

func wireServices(ctx context.Context, db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, rdb *goredis.Client) (Services, error) {
	log.Info("Wiring services...")

	llmClient, err := llm.NewClient(log, cfg.LLM)
	if err != nil {
		return Services{}, fmt.Errorf("init llm client: %w", err)
	}
	gh, err := github.NewClient(log, cfg.GitHub)
	if err != nil {
		return Services{}, fmt.Errorf("init github client: %w", err)
	}
	vc, err := vercel.NewClient(log, cfg.Vercel)
	if err != nil {
		return Services{}, fmt.Errorf("init vercel client: %w", err)
	}
	cms := builderio.NewClient(log, cfg.Builder)
	seal, err := sealer.New(cfg.Sealer)
	if err != nil {
		return Services{}, fmt.Errorf("init sealer: %w", err)
	}
	if seal == nil {
		log.Warn("DARX_SEAL_KEY not set; onboarding will not store CMS keys")
	}

	var remoteLock *redisx.Locker
	var events services.EventPublisher
	if rdb != nil {
		remoteLock = redisx.NewLocker(rdb, cfg.Redis.LockPrefix)
		events = redisx.NewPublisher(rdb, cfg.Redis.Channel)
	}

	store, err := resolveBackupStore(ctx, log, cfg.GCP)
	if err != nil {
		return Services{}, err
	}
	var backups *services.BackupService
	if store != nil {
		backups = services.NewBackupService(log, store, repos.Backups)
	}

	targets, err := pipeline.LoadEditTargets()
	if err != nil {
		return Services{}, fmt.Errorf("load edit targets: %w", err)
	}

	gen := codegen.NewGenerator(log, llmClient)
	deps := pipeline.Deps{
		Generator:   gen,
		Repo:        gh,
		Deploy:      vc,
		CMS:         cms,
		Gate:        services.NewClientGate(log, repos.Clients),
		Credentials: services.NewCredentialResolver(log, repos.Onboarding, seal, cfg.Builder.DedicatedCredentials()),
		Recorder:    services.NewGenerationLog(log, repos.Generations),
		Lock:        pipeline.NewDistributedLock(log, remoteLock, cfg.LockTTL),
		Poller:      pipeline.NewPoller(log, vc, pipeline.RealClock(), cfg.Poll),
	}
	if backups != nil {
		deps.Backups = backups
	}

	auth, err := services.NewOperatorAuth(log, cfg.Auth, nil)
	if err != nil {
		return Services{}, fmt.Errorf("init operator auth: %w", err)
	}

	return Services{
		Orchestrator: pipeline.NewOrchestrator(log, deps),
		Editor:       pipeline.NewEditor(log, gen, gh, vc, targets),
		Onboarding:   services.NewOnboardingService(db, log, cfg.Onboarding, repos.Clients, repos.Onboarding, repos.Tokens, seal, events),
		Auth:         auth,
		Backups:      backups,
		Registry:     registry.NewClient(ctx, log, cfg.Registry, cfg.GCP),
	}, nil
}
