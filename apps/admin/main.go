package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
	emailsvc "github.com/trezcool/educa/services/email"
	"github.com/trezcool/educa/services/filestore"
	logsvc "github.com/trezcool/educa/services/logger"
	inmemcache "github.com/trezcool/educa/storage/cache/inmem"
	"github.com/trezcool/educa/storage/database"
	sqlxrepos "github.com/trezcool/educa/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger("admin", conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(false)
	defer logger.Sync()

	if conf.Database.InMemory {
		logger.Fatal("admin commands need a database: database.inMemory is set")
	}

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cache, err := inmemcache.New(conf.Cache.LRUSize)
	if err != nil {
		logger.Fatal(fmt.Sprintf("creating cache: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:     db.DB,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db)),
		crsSvc: course.NewService(
			sqlxrepos.NewCourseRepository(db),
			sqlxrepos.NewOrderStore(db),
			database.NewTxRunner(db),
			cache,
			filestore.NewLocalStore(conf),
			emailsvc.NewConsoleService(conf, logger),
			logger,
			conf,
		),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", cli.describe(err))
		}
		os.Exit(1)
	}
}
