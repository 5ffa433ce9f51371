// Package server exposes the chat backend over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jmendes/chatwire/internal/chat"
	"github.com/jmendes/chatwire/internal/session"
	"github.com/jmendes/chatwire/internal/user"
)

// Server is the HTTP surface of the chat backend.
type Server struct {
	addr     string
	mux      *http.ServeMux
	chat     *chat.Service
	validate *validator.Validate
}

// New creates a Server. The ws handler serves the live push channel.
func New(addr string, svc *chat.Service, ws http.Handler) *Server {
	s := &Server{
		addr:     addr,
		mux:      http.NewServeMux(),
		chat:     svc,
		validate: validator.New(),
	}
	s.routes(ws)
	return s
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{Addr: s.addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	}
}

func (s *Server) routes(ws http.Handler) {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /register/", s.handleRegister)
	s.mux.HandleFunc("POST /login/", s.handleLogin)
	s.mux.HandleFunc("POST /logout/", s.handleLogout)
	s.mux.HandleFunc("GET /profile/{username}/", s.handleProfile)
	s.mux.HandleFunc("POST /send_message/", s.handleSendMessage)
	s.mux.HandleFunc("GET /messages/{username}/", s.handleMessagesFor)
	s.mux.HandleFunc("GET /messages/{sender}/{receiver}/", s.handleMessagesBetween)
	s.mux.HandleFunc("GET /api/users/", s.handleListUsers)
	s.mux.HandleFunc("GET /api/logged_in_user/", s.handleLoggedInUser)
	if ws != nil {
		s.mux.Handle("GET /ws", ws)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Username     string `json:"username" validate:"required"`
	Password     string `json:"password" validate:"required"`
	Email        string `json:"email" validate:"omitempty,email"`
	Age          int    `json:"age" validate:"omitempty,gte=0"`
	Gender       string `json:"gender"`
	MobileNumber string `json:"mobile_number"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	acct, err := s.chat.Register(req.Username, req.Password, user.Profile{
		Email:        req.Email,
		Age:          req.Age,
		Gender:       req.Gender,
		MobileNumber: req.MobileNumber,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateUsername) {
			writeError(w, http.StatusBadRequest, "Username already taken")
			return
		}
		s.internalError(w, "register", req.Username, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": acct.Username})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	token, err := s.chat.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		s.internalError(w, "login", req.Username, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	s.chat.Logout(token)
	http.SetCookie(w, &http.Cookie{
		Name:   "token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	acct, err := s.chat.Profile(username)
	if err != nil {
		if errors.Is(err, user.ErrUnknownUser) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internalError(w, "profile", username, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type sendMessageRequest struct {
	Sender   string `json:"sender" validate:"required"`
	Receiver string `json:"receiver" validate:"required"`
	Message  string `json:"message" validate:"required,max=2000"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	if _, err := s.chat.Send(req.Sender, req.Receiver, req.Message); err != nil {
		if errors.Is(err, chat.ErrUnknownParticipant) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internalError(w, "send_message", req.Sender, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Message sent"})
}

func (s *Server) handleMessagesFor(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	msgs, err := s.chat.MessagesFor(username)
	if err != nil {
		if errors.Is(err, user.ErrUnknownUser) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internalError(w, "messages", username, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleMessagesBetween(w http.ResponseWriter, r *http.Request) {
	sender := r.PathValue("sender")
	receiver := r.PathValue("receiver")
	msgs, err := s.chat.MessagesBetween(sender, receiver)
	if err != nil {
		if errors.Is(err, user.ErrUnknownUser) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internalError(w, "messages_between", sender+"/"+receiver, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.chat.Users()
	if err != nil {
		s.internalError(w, "list_users", "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"users": users})
}

func (s *Server) handleLoggedInUser(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	username, err := s.chat.Whoami(token)
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}
		s.internalError(w, "logged_in_user", "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": username})
}

// decode unmarshals and validates a JSON request body, writing a 422 and
// returning false when the body is malformed.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// requestToken pulls the session token from the cookie or, failing that,
// the Authorization header.
func requestToken(r *http.Request) string {
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// internalError logs the failed operation and entity key and returns a
// generic 500. Credentials never reach the log.
func (s *Server) internalError(w http.ResponseWriter, op, key string, err error) {
	log.Printf("server: %s %q: %v", op, key, err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
