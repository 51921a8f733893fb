package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/questx-lab/chatsync/config"
	"github.com/questx-lab/chatsync/pkg/logger"
	"github.com/questx-lab/chatsync/pkg/prometheus"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type srv struct {
	app *cli.App
	ctx context.Context

	log interface{ Sync() error }
}

func (s *srv) before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	zapLogger := logger.NewZapLogger(cfg.Log.Level, cfg.Log.JSON)
	s.log = zapLogger

	s.ctx = context.Background()
	s.ctx = xcontext.WithConfigs(s.ctx, cfg)
	s.ctx = xcontext.WithLogger(s.ctx, zapLogger)
	return nil
}

func (s *srv) after(*cli.Context) error {
	if s.log != nil {
		_ = s.log.Sync()
	}

	return nil
}

func (s *srv) loadDatabase() error {
	cfg := xcontext.Configs(s.ctx).DevStore

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.New(mysql.Config{
			DSN:                       cfg.DSN,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  false,
			SkipInitializeWithVersion: false,
		})
	default:
		return fmt.Errorf("unsupported database driver %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}

	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s.ctx = xcontext.WithDB(s.ctx, db)
	return nil
}

// serve runs handler on addr until the server fails.
func (s *srv) serve(name, addr string, handler http.Handler) {
	httpSrv := &http.Server{Addr: addr, Handler: handler}

	xcontext.Logger(s.ctx).Infof("Started %s server on %s", name, addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		xcontext.Logger(s.ctx).Errorf("A error occurs when running %s server: %v", name, err)
	}
}

func (s *srv) startMetrics() {
	cfg := xcontext.Configs(s.ctx).Metrics
	if cfg.Port == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheus.NewHandler())
	go s.serve("metrics", cfg.Address(), mux)
}

// waitSignal blocks until the process is asked to stop.
func (s *srv) waitSignal() {
	termSignal := make(chan os.Signal, 1)
	signal.Notify(termSignal, syscall.SIGINT, syscall.SIGTERM)
	sig := <-termSignal
	xcontext.Logger(s.ctx).Infof("Got a signal of %s", sig.String())
}
