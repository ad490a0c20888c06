package http

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"travelx/internal/auth"
	"travelx/internal/log"
)

// requireSession decodes the session cookie into the request context.
// Without a valid session /api routes answer 401 and pages go to /login.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessionFrom(r)
		if err != nil {
			if _, cerr := r.Cookie(auth.CookieName); cerr == nil {
				s.clearSessionCookie(w)
			}
			switch {
			case strings.HasPrefix(r.URL.Path, "/api/"):
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
			case isHTMX(r):
				NewHTMXResponse().Redirect("/login").Status(http.StatusUnauthorized).Write(w)
			default:
				http.Redirect(w, r, "/login", http.StatusSeeOther)
			}
			return
		}
		next(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	}
}

func (s *Server) sessionFrom(r *http.Request) (*auth.Session, error) {
	c, err := r.Cookie(auth.CookieName)
	if err != nil || c.Value == "" {
		return nil, auth.ErrInvalidSession
	}
	return s.codec.Decode(c.Value)
}

type loginPage struct {
	pageData
	Username   string
	RememberMe bool
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, err := s.sessionFrom(r); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "login.html", loginPage{pageData: pageData{Title: "Sign in"}})
	case http.MethodPost:
		s.login(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentAuth)

	var form LoginForm
	if err := NewRequestBodyParser(r).Decode(&form); err != nil {
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", loginPage{
			pageData: pageData{Title: "Sign in", Error: "Enter your username and password."},
			Username: form.Username,
		})
		return
	}

	sess, err := s.authn.Login(r.Context(), form.Username, form.Password, form.RememberMe)
	if err != nil {
		status := http.StatusUnauthorized
		msg := "Invalid username or password."
		if errors.Is(err, auth.ErrInvalidCredentials) {
			atomic.AddInt64(&s.metrics.loginFailures, 1)
			logger.WarnContext(r.Context(), "Login rejected",
				log.FieldUsername, form.Username,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				"error_type", log.ErrorTypeAuth)
		} else {
			status = http.StatusInternalServerError
			msg = "Sign in is unavailable right now."
			logger.ErrorContext(r.Context(), "Login failed", log.FieldError, err, log.FieldOperation, log.OpLogin)
		}
		s.render(w, r, status, "login.html", loginPage{
			pageData:   pageData{Title: "Sign in", Error: msg},
			Username:   form.Username,
			RememberMe: form.RememberMe,
		})
		return
	}

	token, err := s.codec.Encode(sess)
	if err != nil {
		logger.ErrorContext(r.Context(), "Session encoding failed", log.FieldError, err)
		http.Error(w, "could not start session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt(),
		MaxAge:   int(sess.MaxAge().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	logger.InfoContext(r.Context(), "Operator signed in",
		log.FieldUsername, sess.User.Username,
		"remember_me", sess.RememberMe)

	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	s.clearSessionCookie(w)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
