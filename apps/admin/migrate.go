package main

import (
	"context"

	"github.com/trezcool/masomo-grading/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateFunc(ctx, cli.db, args[0], arguments...)
}
