package api

import (
	"net/http"
	"time"

	"twinforge/backend/internal/ai"
	"twinforge/backend/internal/auth"
	"twinforge/backend/internal/backstory"
	"twinforge/backend/internal/config"
	"twinforge/backend/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Server struct {
	cfg         config.Config
	db          *pgxpool.Pool
	llm         ai.Client
	synth       *backstory.Synthesizer
	logger      *observability.Logger
	metrics     *observability.APIMetrics
	chatLimiter *userRateLimiter
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

type Twin struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Origin           string    `json:"origin"`
	Backstory        string    `json:"backstory"`
	BackstoryVersion int       `json:"backstory_version"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type TwinSource struct {
	ID           string    `json:"id"`
	Platform     string    `json:"platform"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	BatchID      string    `json:"batch_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type Mission struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Completed   bool   `json:"completed"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type AgentPost struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func New(cfg config.Config, pool *pgxpool.Pool, llm ai.Client) *Server {
	return &Server{
		cfg:         cfg,
		db:          pool,
		llm:         llm,
		synth:       backstory.New(llm),
		logger:      observability.NewLogger("api"),
		metrics:     observability.NewAPIMetrics(),
		chatLimiter: newUserRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)
	r.Use(middleware.Timeout(s.cfg.APIRequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.bodyLimit(s.cfg.RequestBodyMaxBytes))
			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.bodyLimit(s.cfg.RequestBodyMaxBytes))
			r.Use(auth.Middleware(s.cfg.JWTSecret))

			r.Get("/me", s.handleMe)

			r.Route("/twins", func(r chi.Router) {
				r.Get("/", s.handleListTwins)
				r.Post("/", s.handleCreateTwin)
				r.Post("/merge", s.handleMergeTwins)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetTwin)
					r.Delete("/", s.handleDeleteTwin)
					r.Get("/sources", s.handleListSources)
					r.With(s.bodyLimit(s.cfg.ExportBodyMaxBytes)).
						Post("/sources/{platform}", s.handleIngestSource)
					r.Post("/backstory", s.handleRegenerateBackstory)
					r.Get("/chat", s.handleChatHistory)
					r.Post("/chat", s.handleChat)
					r.Get("/posts", s.handleListAgentPosts)
					r.Post("/agent/post", s.handleRequestAgentPost)
				})
			})

			r.Get("/missions", s.handleListMissions)
			r.Post("/missions/{id}/complete", s.handleCompleteMission)
		})
	})

	return r
}

func (s *Server) bodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
