package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
	infra "github.com/pot-code/course-progress/internal/infrastructure"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
	"github.com/pot-code/course-progress/internal/interfaces/rest"
	"github.com/pot-code/course-progress/internal/progress"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	defer logger.Sync()

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		logger.Fatal("Failed to create DB connection", zap.Error(err))
	}
	defer dbConn.Close(context.Background())
	logger.Debug("Create DB connection instance", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)

	rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
	defer rdb.Close()

	UUIDGenerator, err := uuid.NewNanoIDGenerator(option.Security.IDLength)
	if err != nil {
		logger.Fatal("Failed to create id generator", zap.Error(err))
	}

	CourseRepo := course.NewCourseRepository(dbConn)
	TreeLoader := course.NewTreeLoader(CourseRepo, option.Course.TreeTTL)
	EnrolmentRepo := enrolment.NewEnrolmentRepository(dbConn, UUIDGenerator)

	Hub := progress.NewHub(rdb, option.KVStore.Channel, logger)
	Notifier := progress.NewBusNotifier(rdb, option.KVStore.Channel)
	CompletionUseCase := enrolment.NewCompletionUseCase(EnrolmentRepo, Notifier, logger)
	Aggregator := progress.NewAggregator(EnrolmentRepo, EnrolmentRepo, EnrolmentRepo, logger)
	Resolver := progress.NewContextResolver(EnrolmentRepo, TreeLoader, option.Course.PageURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return Hub.Run(ctx)
	})
	eg.Go(func() error {
		return rest.Serve(ctx, option, &rest.Dependencies{
			Conn:              dbConn,
			KV:                rdb,
			Resolver:          Resolver,
			Aggregator:        Aggregator,
			Hub:               Hub,
			CompletionUseCase: CompletionUseCase,
			UUIDGenerator:     UUIDGenerator,
		}, logger)
	})
	if err := eg.Wait(); err != nil {
		logger.Error("Server stopped", zap.Error(err))
	}
}
