package main

import (
	"context"

	"github.com/dinor/dinor-api/cache"
	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/events"
	"github.com/dinor/dinor-api/jobs"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/routes"
	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	utils.SetDebug(cfg.Debug)

	db := config.InitDatabase(models.AllModels()...)
	rc := utils.GetRedis()

	store := cache.New(rc, "dinor")
	queue := jobs.NewQueue(rc, "")
	bus := events.NewBus(utils.Logger)

	notifier := services.NewNotifier(db)
	versions := services.NewVersionStore(cfg.PWA.VersionFile, cfg.PWA.MetadataFile, store)
	pwa := services.NewPWAService(store, versions, queue, notifier, cfg, utils.Logger)
	services.NewObserver(pwa, utils.Logger).Register(bus)

	content := services.NewContentService(db, store, bus)
	favorites := services.NewFavoriteService(db)
	likes := services.NewLikeService(db, favorites, services.LikeOptions{
		RequireAuth:  cfg.LikesRequireAuth,
		AutoFavorite: cfg.AutoFavoriteOnLike,
	})
	warmer := services.NewWarmer(content, 0, utils.Logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	worker := jobs.NewWorker(queue, jobs.ExecRunner{}, jobs.WorkerOptions{
		Scripts: map[jobs.Kind]string{
			jobs.KindRebuild:    cfg.PWA.RebuildScript,
			jobs.KindCacheClear: cfg.PWA.CacheClearScript,
		},
		Backoff: cfg.PWA.JobBackoff,
		OnDone:  pwa.JobFinished,
	}, utils.Logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	scheduler, err := services.NewScheduler(warmer, cfg.PWA.WarmupSchedule, db, cfg.PWA.NotificationMaxAge, utils.Logger)
	if err != nil {
		utils.Sugar.Fatalf("invalid scheduler configuration: %v", err)
	}
	scheduler.Start()

	r := routes.SetupRouter(routes.Deps{
		DB:        db,
		Cache:     store,
		Queue:     queue,
		Content:   content,
		Likes:     likes,
		Favorites: favorites,
		Comments:  services.NewCommentService(db, cfg),
		Views:     services.NewViewService(db),
		PWA:       pwa,
		Warmer:    warmer,
		Notifier:  notifier,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful, mode=%s)", cfg.AppPort, cfg.AppEnv)
	serveErr := utils.GraceServer(":"+cfg.AppPort, r,
		utils.ShutdownHook{Name: "pwa job worker", Stop: func(ctx context.Context) error {
			// An interrupted job is requeued by the worker before Run returns.
			stopWorker()
			select {
			case <-workerDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		utils.ShutdownHook{Name: "scheduler", Stop: func(ctx context.Context) error {
			scheduler.Stop(ctx)
			return ctx.Err()
		}},
	)
	_ = utils.Logger.Sync()

	if serveErr != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", serveErr)
	}
}
