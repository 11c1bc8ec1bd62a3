package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	"io"
	"log"
	"microfinance/cache"
	"microfinance/config"
	"microfinance/controllers"
	"microfinance/database"
	"microfinance/realtime"
	"microfinance/services"
	"microfinance/utils"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ошибка чтения .env: %v", err)
	}

	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if err := utils.InitLoggers(cfg.Server.LogDir); err != nil {
		log.Printf("Логи пишутся в stderr: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Инициализируем подключение к базе данных
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer database.Close(db)

	store, err := cache.New(ctx, cache.OptionsFromConfig(cfg))
	if err != nil {
		log.Printf("Redis недоступен, используется кэш в памяти: %v", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	hub := realtime.NewHub(cfg.Server.CORSOrigin)
	go hub.Run(ctx)

	// Сервисы
	emailService := services.NewEmailService(cfg)
	userService := services.NewUserService(db)
	borrowerService := services.NewBorrowerService(db)
	applicationService := services.NewApplicationService(db, emailService, hub)
	loanService := services.NewLoanService(db, emailService, hub)
	repaymentService := services.NewRepaymentService(db, emailService, hub, []byte(cfg.JWT.SecretKey))
	savingsService := services.NewSavingsService(db)
	reportService := services.NewReportService(db, store, cfg.Cache.TTL)
	calculatorService := services.NewCalculatorService(store, cfg.Cache.TTL)

	// Запускаем планировщик статусов
	scheduler := services.NewStatusScheduler(loanService, cfg.Scheduler.Interval)
	go scheduler.Run(ctx)
	log.Printf("Планировщик статусов запущен, интервал %v", cfg.Scheduler.Interval)

	limiter := utils.NewRateLimiter(cfg.Server.RateLimit, time.Minute)
	go cleanupLimiter(ctx, limiter)

	router := controllers.NewRouter(controllers.Handlers{
		Auth:         controllers.NewAuthController(userService, []byte(cfg.JWT.SecretKey), cfg.JWT.ExpiresIn),
		Borrowers:    controllers.NewBorrowerController(borrowerService, savingsService),
		Applications: controllers.NewApplicationController(applicationService),
		Loans:        controllers.NewLoanController(loanService, repaymentService),
		Repayments:   controllers.NewRepaymentController(repaymentService),
		Savings:      controllers.NewSavingsController(savingsService),
		Reports:      controllers.NewReportController(reportService, hub),
		Calculator:   controllers.NewCalculatorController(calculatorService),
		Realtime:     controllers.NewRealtimeController(hub),
	}, controllers.RouterConfig{
		JWTKey:     []byte(cfg.JWT.SecretKey),
		CORSOrigin: cfg.Server.CORSOrigin,
		RateLimit:  cfg.Server.RateLimit,
		Limiter:    limiter,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Ошибка остановки сервера: %v", err)
		}
	}()

	// Запускаем сервер
	log.Printf("Сервер запущен на порту %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
	log.Println("Сервер остановлен")
}

// cleanupLimiter раз в минуту удаляет устаревшие записи лимитера
func cleanupLimiter(ctx context.Context, limiter *utils.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup()
		}
	}
}
