// Command schoolctl is the terminal client of the school portal.
package main

import (
	"log"
	"os"

	"github.com/rollbar/rollbar-go"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/session"
	apisvc "github.com/trezcool/masomo-portal/services/api"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stderr, "CLI : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	defer rollbar.Close()

	tokens := session.NewFileTokenStore(conf.CLI.ConfigDir)
	cli := commandLine{
		api:       apisvc.NewClient(conf.API.BaseURL, nil, apisvc.WithTimeout(conf.API.Timeout)),
		tokens:    tokens,
		cache:     query.NewCache(conf.Query.StaleTime),
		validator: school.NewValidator(),
		logger:    logger,
		out:       os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp && err != errSessionExpired {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		rollbar.Close()
		os.Exit(1)
	}
}
