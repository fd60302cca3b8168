package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"physics-practice/internal/auth"
	"physics-practice/internal/bank"
	"physics-practice/internal/llm"
	"physics-practice/internal/models"
	"physics-practice/internal/quiz"
	"physics-practice/internal/report"
	"physics-practice/pkg/cache"
	"physics-practice/pkg/database"
	"physics-practice/pkg/ws"

	"github.com/gorilla/mux"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	// Initialize database
	dbConfig := &database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}

	db, err := database.NewPostgresDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.SessionToken{},
		&models.QuizRecord{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis cache
	redisCache := cache.NewRedisCache(os.Getenv("REDIS_ADDR"))
	if err := redisCache.Ping(); err != nil {
		log.Printf("Warning: redis not reachable: %v", err)
	}

	// Load the question bank
	dataDir := envOr("QUESTION_DATA_DIR", "data")
	questionBank, err := bank.Load(dataDir)
	if err != nil {
		log.Fatalf("Failed to load question bank: %v", err)
	}
	log.Printf("Question bank ready: %d units", len(questionBank.Units()))

	// LLM client is optional; without an API key the app still works with
	// local reports and the static bank only.
	var aiClient *llm.Client
	var completer report.TextCompleter
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		aiClient = llm.NewClient(llm.Config{
			BaseURL:     envOr("LLM_API_URL", "https://api.deepseek.com/v1/chat/completions"),
			APIKey:      apiKey,
			Model:       envOr("LLM_MODEL", "deepseek-chat"),
			Timeout:     envSeconds("LLM_TIMEOUT_SECONDS", 120),
			MaxAttempts: envInt("LLM_MAX_ATTEMPTS", 3),
			RetryDelay:  envSeconds("LLM_RETRY_DELAY_SECONDS", 5),
		})
		completer = aiClient
	} else {
		log.Printf("Warning: LLM_API_KEY not set, AI features disabled")
	}

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	// Initialize repositories and services
	authRepo := auth.NewRepository(db)
	quizRepo := quiz.NewRepository(db)

	authService := auth.NewService(authRepo, os.Getenv("JWT_SECRET"))
	quizService := quiz.NewService(questionBank, quizRepo, wsHub)
	reportGenerator := report.NewGenerator(completer, redisCache)

	// Periodic cleanup of stale session tokens
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			authService.CleanupExpired()
		}
	}()

	// Initialize handlers
	authHandler := auth.NewHandler(authService, quizService)
	quizHandler := quiz.NewHandler(quizService, reportGenerator, aiClient, redisCache)

	// Setup router
	router := mux.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{envOr("FRONTEND_ORIGIN", "http://localhost:3000")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(router)

	// Auth routes - no session required
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Everything else requires a valid session token
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.Middleware(authService))

	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/units", quizHandler.GetUnits).Methods("GET")
	apiRouter.HandleFunc("/units/{unit}/topics", quizHandler.GetTopics).Methods("GET")
	apiRouter.HandleFunc("/quiz/start", quizHandler.StartQuiz).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quiz/answer", quizHandler.SubmitAnswer).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quiz/current", quizHandler.CurrentQuestion).Methods("GET")
	apiRouter.HandleFunc("/quiz/end", quizHandler.EndQuiz).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quiz/remedial", quizHandler.StartRemedial).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quiz/generate", quizHandler.GenerateQuiz).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quiz/result", quizHandler.GetResult).Methods("GET")
	apiRouter.HandleFunc("/stats", quizHandler.GetStats).Methods("GET")
	apiRouter.HandleFunc("/report", quizHandler.GenerateReport).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/report", quizHandler.InvalidateReport).Methods("DELETE")
	apiRouter.HandleFunc("/session/state", quizHandler.SessionState).Methods("GET")
	apiRouter.HandleFunc("/session/restore", quizHandler.RestoreSession).Methods("POST", "OPTIONS")

	// WebSocket endpoint
	router.HandleFunc("/ws", wsHub.HandleWebSocket(authService))

	srv := &http.Server{
		Addr:        ":" + envOr("PORT", "8080"),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Report generation may block for the full LLM retry budget
		// (3 attempts x 120s plus delays), so the write timeout must
		// cover the worst case.
		WriteTimeout: 7 * time.Minute,
	}

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown gracefully")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
