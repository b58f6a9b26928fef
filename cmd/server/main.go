package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"shopdesk/backend/internal/cache"
	"shopdesk/backend/internal/config"
	"shopdesk/backend/internal/dashboard"
	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/httpapi"
	"shopdesk/backend/internal/logging"
	"shopdesk/backend/internal/mail"
	"shopdesk/backend/internal/metrics"
	"shopdesk/backend/internal/service"
	"shopdesk/backend/internal/store"
	"shopdesk/backend/internal/store/memory"
	pgstore "shopdesk/backend/internal/store/postgres"
	"shopdesk/backend/internal/store/xlsx"
	"shopdesk/backend/internal/xid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := validateSecurityConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := metrics.New()
	closers := make([]func() error, 0, 2)

	repo, closeRepo, err := openRepository(ctx, cfg, log, m)
	if err != nil {
		log.WithError(err).Fatal("open repository")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	var otps cache.OTPStore
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisOTPStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisStore.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, keeping reset codes in memory")
			_ = redisStore.Close()
		} else {
			otps = redisStore
			closers = append(closers, redisStore.Close)
			log.Info("otp store: redis")
		}
	}
	if otps == nil {
		memoryStore := cache.NewMemoryOTPStore()
		go memoryStore.Run(runCtx, cache.SweepInterval)
		otps = memoryStore
		log.Info("otp store: memory")
	}

	loc := cfg.Location()
	svc := service.New(repo, service.Options{
		Location:        loc,
		Logger:          log,
		DefaultShopName: cfg.DefaultShopName,
	})

	if err := seedAdmin(ctx, svc, cfg, log); err != nil {
		log.WithError(err).Fatal("seed admin account")
	}

	var mailer mail.Sender = mail.LogSender{Log: log}
	if cfg.SMTPHost != "" {
		shopName := cfg.DefaultShopName
		if settings, err := svc.GetShopSettings(ctx); err == nil {
			shopName = settings.ShopName
		}
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			ShopName: shopName,
		}, cache.OTPTTL)
		log.WithField("host", cfg.SMTPHost).Info("mailer: smtp")
	} else {
		log.Warn("SMTP_HOST not set; reset codes are written to the log")
	}

	auth := httpapi.NewAuthManager(svc, httpapi.AuthOptions{
		Secret:   cfg.AuthSecret,
		TokenTTL: cfg.TokenTTL(),
		OTPs:     otps,
		Mailer:   mailer,
		Logger:   log,
	})
	api := httpapi.New(svc, dashboard.New(repo, loc), repo, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		AuthRequired:  cfg.AuthRequired,
		Logger:        log,
		Metrics:       m,
		Location:      loc,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Address()).Info("shop backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	stopRun()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Error("close error")
		}
	}

	log.Info("server stopped")
}

type observedRepository interface {
	store.Repository
	SetObserver(store.Observer)
}

// openRepository picks the backing store: postgres when DATABASE_URL is set,
// the in-process store for DATA_FILE=:memory:, the workbook otherwise.
func openRepository(ctx context.Context, cfg config.Config, log logrus.FieldLogger, observer store.Observer) (store.Repository, func() error, error) {
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		withObserver(pg, observer)
		log.Info("repository: postgres")
		return pg, pg.Close, nil
	}

	if cfg.UsesMemoryStore() {
		repo := memory.New()
		withObserver(repo, observer)
		log.Warn("repository: in-memory; data is lost on restart")
		return repo, nil, nil
	}

	book, err := xlsx.New(cfg.DataFile, xlsx.WithLogger(log), xlsx.WithObserver(observer))
	if err != nil {
		return nil, nil, err
	}
	if cfg.LegacyDataDir != "" {
		migrated, err := book.MigrateLegacy(ctx, cfg.LegacyDataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate legacy workbooks: %w", err)
		}
		if len(migrated) > 0 {
			log.WithField("sheets", strings.Join(migrated, ",")).Info("migrated legacy workbooks")
		}
	}
	log.WithField("path", book.Path()).Info("repository: workbook")
	return book, nil, nil
}

func withObserver(repo observedRepository, observer store.Observer) {
	if observer != nil {
		repo.SetObserver(observer)
	}
}

// seedAdmin creates the first admin when the users sheet is empty. Without
// SEED_ADMIN_PASSWORD a random password is generated and logged once.
func seedAdmin(ctx context.Context, svc *service.Service, cfg config.Config, log logrus.FieldLogger) error {
	password := cfg.SeedAdminPassword
	generated := false
	if password == "" {
		var err error
		password, err = xid.Password(16)
		if err != nil {
			return err
		}
		generated = true
	}
	hashed, err := httpapi.HashPassword(password)
	if err != nil {
		return err
	}

	created, err := svc.EnsureDefaultAdmin(ctx, domain.User{
		Username: cfg.SeedAdminUsername,
		Password: hashed,
		Email:    cfg.SeedAdminEmail,
		Role:     "admin",
	})
	if err != nil || !created {
		return err
	}

	entry := log.WithField("username", cfg.SeedAdminUsername)
	if generated {
		entry = entry.WithField("password", password)
	}
	entry.Warn("created initial admin account; change the password after first login")
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if cfg.AuthRequired && len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminPassword != "" {
		if err := validatePasswordStrength(cfg.SeedAdminPassword); err != nil {
			return fmt.Errorf("SEED_ADMIN_PASSWORD is too weak: %w", err)
		}
	}
	return nil
}

// validatePasswordStrength rejects short passwords, single repeated
// characters and a few well-known defaults.
func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("must be at least 8 characters")
	}
	known := map[string]bool{
		"password": true, "password1": true, "admin123": true, "12345678": true,
		"123456789": true, "qwertyui": true, "changeme": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}
	if strings.Count(password, password[:1]) == len(password) {
		return fmt.Errorf("repeated-character password not allowed")
	}
	return nil
}
