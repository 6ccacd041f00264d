package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
	emailsvc "github.com/trezcool/escola/services/email"
	logsvc "github.com/trezcool/escola/services/logger"
	"github.com/trezcool/escola/storage/database"
	sqlxrepos "github.com/trezcool/escola/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	defaults, err := grade.NewConfig(conf.Grades)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	// start CLI
	cli := commandLine{
		db:       db,
		conf:     conf,
		gradeSvc: newGradeService(db, conf, defaults, logger),
		in:       os.Stdin,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Wait()
	if err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
			logger.Wait()
		}
		os.Exit(1)
	}
}

func newGradeService(db *sqlx.DB, conf *core.Config, defaults grade.Config, logger core.Logger) grade.Service {
	return grade.NewService(grade.ServiceDeps{
		DB:           db,
		Repo:         sqlxrepos.NewGradeRepository(db),
		SettingsRepo: sqlxrepos.NewSettingsRepository(db),
		MailSvc:      emailsvc.NewConsoleService(conf, os.Stdout, logger),
		Defaults:     defaults,
		Conf:         conf,
		Logger:       logger,
	})
}
