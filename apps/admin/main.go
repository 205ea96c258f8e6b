package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/grading"
	logsvc "github.com/trezcool/masomo-grading/services/logger"
	"github.com/trezcool/masomo-grading/storage/database"
	sqlxrepos "github.com/trezcool/masomo-grading/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	grading.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db,
		gradingSvc: grading.NewService(sqlxrepos.NewGradingRepository(db), logger, conf),
		validate:   validate,
		in:         os.Stdin,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	logger.Wait()
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
