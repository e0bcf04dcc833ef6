package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/IlyasAtabaev731/finance/internal/config"
	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/gorilla/mux"
)

// Trader is the set of operations the HTTP layer exposes.
type Trader interface {
	Portfolio(ctx context.Context, userID int64) (*models.Portfolio, error)
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	Buy(ctx context.Context, userID int64, symbol, sharesRaw string) (*models.Transaction, error)
	History(ctx context.Context, userID int64) ([]models.Transaction, error)
	Register(ctx context.Context, username, password, confirmation string) (int64, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	ChangePassword(ctx context.Context, userID int64, current, newPassword, confirmation string) error
}

type APIServer struct {
	config  *config.Config
	logger  *slog.Logger
	server  *http.Server
	trading Trader
	views   views
}

func New(config *config.Config, logger *slog.Logger, trading Trader) *APIServer {
	v, err := parseViews()
	if err != nil {
		panic("Failed to parse templates: " + err.Error())
	}

	s := &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr: config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
		},
		trading: trading,
		views:   v,
	}
	s.server.Handler = s.routes()

	return s
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

// Handler returns the fully wired router.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) routes() http.Handler {
	router := mux.NewRouter()
	router.Use(s.requestLogger, noCache)

	router.HandleFunc("/", s.authenticate(s.indexHandler())).Methods(http.MethodGet)
	router.HandleFunc("/buy", s.authenticate(s.buyHandler())).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/history", s.authenticate(s.historyHandler())).Methods(http.MethodGet)
	router.HandleFunc("/quote", s.authenticate(s.quoteHandler())).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/change_password", s.authenticate(s.changePasswordHandler())).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/login", s.loginHandler()).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/logout", s.logoutHandler()).Methods(http.MethodGet)
	router.HandleFunc("/register", s.registerHandler()).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/healthz", s.healthHandler()).Methods(http.MethodGet)

	// mux skips router middleware for unmatched routes
	router.MethodNotAllowedHandler = noCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}))
	router.NotFoundHandler = noCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}))

	return router
}
