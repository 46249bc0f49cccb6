package dig_container

import (
	"log"
	"os"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoweb "github.com/trezcool/masomo-portal/apps/web/echo"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
	apisvc "github.com/trezcool/masomo-portal/services/api"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	metricsvc "github.com/trezcool/masomo-portal/services/metrics"
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "WEB : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newAPIClient(conf *core.Config, metrics *metricsvc.Metrics) *apisvc.Client {
	return apisvc.NewClient(
		conf.API.BaseURL,
		nil, // tokens are bound per request
		apisvc.WithTimeout(conf.API.Timeout),
		apisvc.WithRoundTripper(metrics.RoundTripper),
	)
}

func newCache(conf *core.Config, metrics *metricsvc.Metrics) *query.Cache {
	return query.NewCache(conf.Query.StaleTime, metrics)
}

func newSessionStore(conf *core.Config) sessions.Store {
	return echoweb.NewCookieStore(conf.Web.SessionSecret, !conf.Debug)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(school.NewValidator))
	must(c.Provide(metricsvc.New))
	must(c.Provide(newAPIClient))
	must(c.Provide(newCache))
	must(c.Provide(newSessionStore))
	must(c.Provide(echoweb.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
