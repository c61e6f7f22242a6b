package dig_container

import (
	"context"
	"fmt"
	"log"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/educa/apps/api/echo"
	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
	"github.com/trezcool/educa/core/user"
	emailsvc "github.com/trezcool/educa/services/email"
	"github.com/trezcool/educa/services/filestore"
	logsvc "github.com/trezcool/educa/services/logger"
	inmemcache "github.com/trezcool/educa/storage/cache/inmem"
	rediscache "github.com/trezcool/educa/storage/cache/redis"
	"github.com/trezcool/educa/storage/database"
	inmemdb "github.com/trezcool/educa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/educa/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage groups the persistence dependencies, backed by PostgreSQL or by memory.
type Storage struct {
	dig.Out
	UserRepo   user.Repository
	CourseRepo course.Repository
	OrderStore ordering.Store
	Tx         core.TxRunner
}

// Cleanup collects the functions releasing opened resources (DB, redis, GCS client).
type Cleanup struct {
	mu  sync.Mutex
	fns []func() error
}

func (c *Cleanup) add(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
}

// Run calls the cleanup functions in reverse order and returns the first error.
func (c *Cleanup) Run() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.fns = nil
	return firstErr
}

func newLogger(name string) func(conf *core.Config) (core.Logger, error) {
	return func(conf *core.Config) (core.Logger, error) {
		zl, err := logsvc.NewZapLogger(name, conf)
		if err != nil {
			return nil, errors.Wrap(err, "building zap logger")
		}
		logger := logsvc.NewRollbarLogger(zl, conf)
		logger.Enable(!conf.Debug && conf.RollbarToken != "")
		return logger, nil
	}
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam, cleanup *Cleanup) Storage {
	logger := loggerParam.Logger

	if conf.Database.InMemory {
		logger.Warn("using in-memory storage: data is lost on restart")
		db := inmemdb.Open()
		return Storage{
			UserRepo:   inmemdb.NewUserRepository(db),
			CourseRepo: inmemdb.NewCourseRepository(db),
			OrderStore: inmemdb.NewOrderStore(db),
			Tx:         db,
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(context.Background(), db.DB); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	cleanup.add(db.Close)
	logger.Info("database ready: " + conf.Database.Address())

	return Storage{
		UserRepo:   sqlxrepos.NewUserRepository(db),
		CourseRepo: sqlxrepos.NewCourseRepository(db),
		OrderStore: sqlxrepos.NewOrderStore(db),
		Tx:         database.NewTxRunner(db),
	}
}

func newCache(conf *core.Config, cleanup *Cleanup) (core.Cache, error) {
	if conf.Cache.RedisAddr == "" {
		return inmemcache.New(conf.Cache.LRUSize)
	}
	rdb, err := rediscache.Open(conf)
	if err != nil {
		return nil, err
	}
	cleanup.add(rdb.Close)
	return rediscache.New(rdb, conf), nil
}

func newFileStore(conf *core.Config, cleanup *Cleanup) (core.FileStore, error) {
	if conf.Storage.GCSBucket == "" {
		return filestore.NewLocalStore(conf), nil
	}
	store, closeClient, err := filestore.NewGCSStore(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	cleanup.add(closeClient)
	return store, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newServerDeps(
	conf *core.Config,
	logger core.Logger,
	usrSvc user.Service,
	crsSvc course.Service,
	validate *validator.Validate,
	translator ut.Translator,
) echoapi.ServerDeps {
	return echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		CourseSvc:  crsSvc,
		Validate:   validate,
		Translator: translator,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(func() *Cleanup { return new(Cleanup) }))
	must(c.Provide(newLogger("api")))
	must(c.Provide(newLogger("db"), dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newCache))
	must(c.Provide(newFileStore))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
