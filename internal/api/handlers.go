package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/IlyasAtabaev731/finance/internal/lib/jwt"
	"github.com/IlyasAtabaev731/finance/internal/lib/logger/sl"
	"github.com/IlyasAtabaev731/finance/internal/services/trading"
	"github.com/IlyasAtabaev731/finance/internal/storage"
)

// statusFor maps a trading error to its response status. Unknown errors are internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, trading.ErrInvalidCredentials):
		return http.StatusForbidden
	case errors.Is(err, trading.ErrValidation),
		errors.Is(err, trading.ErrInvalidSymbol),
		errors.Is(err, trading.ErrInsufficientFunds),
		errors.Is(err, trading.ErrDuplicateUsername):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail renders err with the status it maps to. A session pointing at a
// user that no longer exists is treated as logged out.
func (s *APIServer) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if errors.Is(err, storage.ErrUserNotFound) {
		s.clearSession(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if status == http.StatusInternalServerError {
		loggerFrom(r.Context(), s.logger).Error("request failed", sl.Err(err))
		s.apologize(w, r, status, "internal server error")
		return
	}

	s.apologize(w, r, status, trading.Message(err))
}

func (s *APIServer) indexHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserID(r.Context())

		portfolio, err := s.trading.Portfolio(r.Context(), userID)
		if err != nil {
			s.fail(w, r, statusFor(err), err)
			return
		}

		s.render(w, r, http.StatusOK, "index", portfolio)
	}
}

func (s *APIServer) buyHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.render(w, r, http.StatusOK, "buy", nil)
			return
		}

		userID, _ := UserID(r.Context())

		_, err := s.trading.Buy(r.Context(), userID, r.PostFormValue("symbol"), r.PostFormValue("shares"))
		if err != nil {
			s.fail(w, r, statusFor(err), err)
			return
		}

		setFlash(w, "Bought!")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *APIServer) historyHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserID(r.Context())

		transactions, err := s.trading.History(r.Context(), userID)
		if err != nil {
			s.fail(w, r, statusFor(err), err)
			return
		}

		s.render(w, r, http.StatusOK, "history", transactions)
	}
}

func (s *APIServer) quoteHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.render(w, r, http.StatusOK, "quote", nil)
			return
		}

		q, err := s.trading.Quote(r.Context(), r.PostFormValue("symbol"))
		if err != nil {
			s.fail(w, r, statusFor(err), err)
			return
		}

		s.render(w, r, http.StatusOK, "quoted", q)
	}
}

func (s *APIServer) loginHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// forget any previous session
		s.clearSession(w)

		if r.Method != http.MethodPost {
			s.render(w, r, http.StatusOK, "login", nil)
			return
		}

		user, err := s.trading.Authenticate(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
		if err != nil {
			status := statusFor(err)
			if status != http.StatusInternalServerError {
				status = http.StatusForbidden
			}
			s.fail(w, r, status, err)
			return
		}

		token, err := jwt.NewToken(user, s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, err)
			return
		}

		loggerFrom(r.Context(), s.logger).Info("user logged in", slog.Int64("user_id", user.ID))

		s.startSession(w, token)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *APIServer) logoutHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.clearSession(w)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *APIServer) registerHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.render(w, r, http.StatusOK, "register", nil)
			return
		}

		_, err := s.trading.Register(r.Context(),
			r.PostFormValue("username"),
			r.PostFormValue("password"),
			r.PostFormValue("confirmation"),
		)
		if err != nil {
			s.fail(w, r, statusFor(err), err)
			return
		}

		setFlash(w, "Registered!")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

func (s *APIServer) changePasswordHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.render(w, r, http.StatusOK, "change_password", nil)
			return
		}

		userID, _ := UserID(r.Context())

		err := s.trading.ChangePassword(r.Context(), userID,
			r.PostFormValue("current_password"),
			r.PostFormValue("new_password"),
			r.PostFormValue("confirmation"),
		)
		if err != nil {
			s.fail(w, r, statusFor(err), err)
			return
		}

		setFlash(w, "Password changed successfully!")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *APIServer) healthHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
