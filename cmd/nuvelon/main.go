package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	nhttp "net/http"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/http"
	"nuvelon-admin/internal/jobs"
	"nuvelon-admin/internal/lifecycle"
	"nuvelon-admin/internal/model"
	"nuvelon-admin/internal/notification"
	"nuvelon-admin/internal/scheduler"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

type StorageOptions struct {
	Storage string `long:"storage" env:"NUVELON_STORAGE" description:"Client storage backend" choice:"memory" choice:"postgres" default:"postgres"`
	DbHost  string `short:"u" long:"db-url" env:"NUVELON_DB_HOST" description:"Database host url" default:"localhost"`
	DbPort  uint   `short:"p" long:"db-port" env:"NUVELON_DB_PORT" description:"Database port" default:"5432"`
	DbUser  string `short:"l" long:"db-login" env:"NUVELON_DB_USER" description:"Database user login" default:"nuvelon"`
	DbName  string `short:"n" long:"db-name" env:"NUVELON_DB_NAME" description:"Database name" default:"nuvelon"`
}

type ServeCommand struct {
	StorageOptions `group:"Storage"`

	Addr              string        `long:"addr" env:"NUVELON_ADDR" description:"HTTP listen address" default:"localhost:8080"`
	JWTSecret         string        `long:"jwt-secret" env:"JWT_SECRET" description:"HS256 secret shared with the login service" required:"true"`
	Timezone          string        `long:"timezone" env:"NUVELON_TIMEZONE" description:"Timezone cron schedules are evaluated in" default:"America/Sao_Paulo"`
	AdminEmails       []string      `long:"admin-email" env:"ADMIN_EMAILS" env-delim:"," description:"Recipient of reports and alerts, repeatable"`
	BackupDir         string        `long:"backup-dir" env:"NUVELON_BACKUP_DIR" description:"Directory for data backup snapshots" default:"./backups"`
	RateLimit         int           `long:"rate-limit" env:"NUVELON_RATE_LIMIT" description:"Requests allowed per client IP per window" default:"100"`
	RateLimitWindow   time.Duration `long:"rate-limit-window" env:"NUVELON_RATE_LIMIT_WINDOW" description:"Rate limit window" default:"1m"`
	MaxSecurityEvents int           `long:"max-security-events" env:"NUVELON_MAX_SECURITY_EVENTS" description:"Security events kept in memory" default:"1000"`
	MaxNotifications  int           `long:"max-notifications" env:"NUVELON_MAX_NOTIFICATIONS" description:"Notifications kept in memory" default:"1000"`
	Seed              bool          `long:"seed" description:"Load the default plans and sample clients before serving"`
}

type SeedCommand struct {
	StorageOptions `group:"Storage"`
}

type Options struct {
	LogLevel string `long:"log-level" env:"NUVELON_LOG_LEVEL" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`

	Serve ServeCommand `command:"serve" description:"Run the admin API and the job scheduler"`
	Seed  SeedCommand  `command:"seed" description:"Create the default plans and sample clients"`
}

const serverShutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(fmt.Errorf("could not load .env file: %w", err))
	}

	opts := Options{}
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		level, err := log.ParseLevel(opts.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log.SetLevel(level)
		return command.Execute(args)
	}
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return
		}
		log.Fatal(err)
	}
}

func (so StorageOptions) open(ctx context.Context) (model.ClientStorage, func(), error) {
	if so.Storage == "memory" {
		log.Warn("Using in-memory storage, data is lost on exit")
		return model.NewMemoryClientStorage(), func() {}, nil
	}
	datasourceName := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		so.DbHost,
		so.DbPort,
		so.DbUser,
		os.Getenv("POSTGRES_PASSWORD"),
		so.DbName,
	)
	storage, err := model.NewSQLClientStorage(ctx, "postgres", datasourceName)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create client storage: %w", err)
	}
	return storage, func() {
		if err := storage.Close(); err != nil {
			log.Error(fmt.Errorf("failed to close database: %w", err))
		}
	}, nil
}

func (sc *SeedCommand) Execute(_ []string) error {
	background := context.Background()
	storage, closeStorage, err := sc.open(background)
	if err != nil {
		return err
	}
	defer closeStorage()
	return seed(background, storage, lifecycle.NewEngine(storage, audit.NewSecurityLog(0)))
}

func (sc *ServeCommand) Execute(_ []string) error {
	location, err := time.LoadLocation(sc.Timezone)
	if err != nil {
		return fmt.Errorf("unknown timezone %s: %w", sc.Timezone, err)
	}
	if len(sc.AdminEmails) == 0 {
		log.Warn("No admin emails configured, reports and alerts will not be delivered")
	}

	background := context.Background()
	storage, closeStorage, err := sc.open(background)
	if err != nil {
		return err
	}
	defer closeStorage()

	security := audit.NewSecurityLog(sc.MaxSecurityEvents)
	dispatcher := notification.NewDispatcher(notification.LogTransport{}, security, notification.Config{
		AdminEmails: sc.AdminEmails,
		MaxHistory:  sc.MaxNotifications,
	})
	engine := lifecycle.NewEngine(storage, security)
	if sc.Seed {
		if err = seed(background, storage, engine); err != nil {
			return err
		}
	}

	jobScheduler := scheduler.New(security, location)
	err = jobs.Initialize(jobScheduler, jobs.Dependencies{
		Lifecycle:   engine,
		Storage:     storage,
		Dispatcher:  dispatcher,
		Security:    security,
		AdminEmails: sc.AdminEmails,
		BackupDir:   sc.BackupDir,
	})
	if err != nil {
		return fmt.Errorf("could not register jobs: %w", err)
	}

	server, err := http.NewServer(http.Services{
		Automation:    jobScheduler,
		Clients:       engine,
		Notifications: dispatcher,
		Security:      security,
		Storage:       storage,
	}, http.Config{
		Addr:            sc.Addr,
		JWTSecret:       sc.JWTSecret,
		RateLimit:       sc.RateLimit,
		RateLimitWindow: sc.RateLimitWindow,
		Location:        location,
	})
	if err != nil {
		return fmt.Errorf("could not create admin server: %w", err)
	}

	cancelCtx, cancel := context.WithCancel(background)
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	jobScheduler.Start(cancelCtx)
	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", sc.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nhttp.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case <-sigs:
	case err = <-serverErrors:
		log.Error(fmt.Errorf("listen and serve error: %w", err))
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(background, serverShutdownTimeout)
	defer timeoutCancel()
	if err := server.Shutdown(timeoutCtx); err != nil {
		log.Error(fmt.Errorf("failed to shutdown server: %w", err))
	}
	select {
	case <-jobScheduler.Stop().Done():
	case <-timeoutCtx.Done():
		log.Warn("Timed out waiting for running jobs")
	}
	cancel()
	return err
}
