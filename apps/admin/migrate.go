package main

import "github.com/trezcool/tuutta/storage/database"

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
