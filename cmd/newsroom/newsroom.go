package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rtemka/newsroom/domain"
	"github.com/rtemka/newsroom/pkg/api"
	"github.com/rtemka/newsroom/pkg/auth"
	"github.com/rtemka/newsroom/pkg/metrics"
	"github.com/rtemka/newsroom/pkg/moderation"
	"github.com/rtemka/newsroom/pkg/storage/memdb"
	"github.com/rtemka/newsroom/pkg/storage/postgres"
	"github.com/rtemka/newsroom/pkg/storage/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// имя переменной окружения
const (
	portEnv       = "NEWSROOM_PORT"
	dbURLEnv      = "DB_URL"
	secretEnv     = "SECRET_KEY"
	driverEnv     = "DB_DRIVER"
	seedEnv       = "SEED_FILE"
	badWordsEnv   = "BAD_WORDS"
	sessionTTLEnv = "SESSION_TTL"
)

// драйверы БД
const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

// настройки базы данных
const (
	maxConns        = 50
	maxConnIdleTime = 4 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// config - настройки сервиса из окружения.
type config struct {
	port       string
	dbURL      string
	secret     []byte
	driver     string
	seedFile   string
	filter     *moderation.Filter
	sessionTTL time.Duration
}

func run() error {
	// переменные можно найти не только в файле
	_ = godotenv.Load()

	zl := zapLogger(os.Stdout)
	defer func() {
		_ = zl.Sync()
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := connectDB(cfg, zl, 5, time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	// создание контекста для регулирования
	// закрытие всех подсистем
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	servers := []*http.Server{
		startRestServer(cfg, db, zl, &wg),
	}

	// логика закрытия сервера
	cancelation(cancel, zl, servers)

	wg.Wait()

	return nil
}

// loadConfig читает обязательные и необязательные
// переменные окружения.
func loadConfig() (config, error) {
	em, err := envs(portEnv, dbURLEnv, secretEnv)
	if err != nil {
		return config{}, err
	}
	if em[secretEnv] == "" {
		return config{}, fmt.Errorf("environment variable %q must not be empty", secretEnv)
	}

	cfg := config{
		port:       em[portEnv],
		dbURL:      em[dbURLEnv],
		secret:     []byte(em[secretEnv]),
		driver:     driverSQLite,
		seedFile:   os.Getenv(seedEnv),
		filter:     moderation.New(),
		sessionTTL: auth.DefaultTTL,
	}

	if v := os.Getenv(driverEnv); v != "" {
		cfg.driver = v
	}
	switch cfg.driver {
	case driverSQLite, driverPostgres, driverMemory:
	default:
		return config{}, fmt.Errorf("unknown %s %q: must be one of %s, %s, %s",
			driverEnv, cfg.driver, driverSQLite, driverPostgres, driverMemory)
	}

	if v, ok := os.LookupEnv(badWordsEnv); ok {
		cfg.filter = moderation.Parse(v)
	}

	if v := os.Getenv(sessionTTLEnv); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return config{}, fmt.Errorf("bad %s %q: must be a positive duration", sessionTTLEnv, v)
		}
		cfg.sessionTTL = ttl
	}

	return cfg, nil
}

// cancellation отслеживает сигналы прерывания и,
// если они получены, "мягко" отменяет контекст приложения и
// гасит серверы.
func cancelation(cancel context.CancelFunc, logger *zap.Logger, servers []*http.Server) {
	// ловим сигналов прерывания, типа CTRL-C
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-stop // получили сигнал
		sl := logger.Sugar()
		sl.Warnf("got signal %q", sig)

		ctx, stopTimeout := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopTimeout()

		// закрываем серверы
		for i := range servers {
			if err := servers[i].Shutdown(ctx); err != nil {
				sl.Info(err)
			}
		}

		cancel() // закрываем контекст приложения
	}()
}

// envs собирает ожидаемые переменные окружения,
// возвращает ошибку, если какая-либо из переменных env не задана.
func envs(envs ...string) (map[string]string, error) {
	em := make(map[string]string, len(envs))
	var ok bool
	for _, env := range envs {
		if em[env], ok = os.LookupEnv(env); !ok {
			return nil, fmt.Errorf("environment variable %q must be set", env)
		}
	}
	return em, nil
}

var ErrRetryExceeded = errors.New("connect DB: number of retries exceeded")

// sqlStore - хранилище на SQL, которое умеет создавать схему
// и исполнять sql-файлы.
type sqlStore interface {
	domain.Repository
	Migrate(ctx context.Context) error
	RunFile(path string) error
}

func connectDB(cfg config, logger *zap.Logger, retries int, interval time.Duration) (domain.Repository, error) {

	if cfg.driver == driverMemory {
		if cfg.seedFile != "" {
			logger.Warn("seed file is ignored by in-memory storage", zap.String("file", cfg.seedFile))
		}
		return memdb.New(), nil
	}

	for i := 0; i < retries; i++ {
		db, err := open(cfg.driver, cfg.dbURL)
		if err != nil {
			logger.Warn("connect DB", zap.String("driver", cfg.driver), zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(interval)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Migrate(ctx)
		cancel()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}

		if cfg.seedFile != "" {
			if err := db.RunFile(cfg.seedFile); err != nil {
				db.Close()
				return nil, fmt.Errorf("seed %s: %w", cfg.seedFile, err)
			}
		}

		logger.Info("DB connected", zap.String("driver", cfg.driver))
		return db, nil
	}

	return nil, ErrRetryExceeded
}

func open(driver, connstr string) (sqlStore, error) {
	if driver == driverPostgres {
		db, err := postgres.New(connstr)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, err
		}
		return db, nil
	}

	db, err := sqlite.New(connstr)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}
	db.DB.SetConnMaxIdleTime(maxConnIdleTime)
	db.DB.SetMaxOpenConns(maxConns)
	db.DB.SetMaxIdleConns(maxConns)
	return db, nil
}

// startRestServer запускает сервер REST API.
func startRestServer(cfg config, db domain.Repository, logger *zap.Logger, wg *sync.WaitGroup) *http.Server {
	sessions := auth.New(db, cfg.secret, cfg.sessionTTL)

	// REST API
	api := api.New(db, sessions, logger,
		api.WithFilter(cfg.filter),
		api.WithMetrics(metrics.New()),
	)

	// конфигурируем сервер
	srv := &http.Server{
		Addr:              cfg.port,
		Handler:           api,
		IdleTimeout:       3 * time.Minute,
		ReadHeaderTimeout: time.Minute,
	}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error(err.Error())
		}
		logger.Warn("server is shut down")
		wg.Done()
	}()
	logger.Info("REST server started", zap.String("address", srv.Addr))
	return srv
}

var encoderCfg = zapcore.EncoderConfig{
	MessageKey: "msg",
	NameKey:    "name",

	LevelKey:    "level",
	EncodeLevel: zapcore.CapitalLevelEncoder,

	CallerKey:    "caller",
	EncodeCaller: zapcore.ShortCallerEncoder,

	TimeKey:    "time",
	EncodeTime: zapcore.RFC3339TimeEncoder,
}

func zapLogger(w io.Writer) *zap.Logger {
	zl := zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(zapcore.AddSync(w)),
			zapcore.DebugLevel,
		),
		zap.AddCaller(),
	)
	return zl
}
