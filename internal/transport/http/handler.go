package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"thinktank-service/internal/app"
	"thinktank-service/internal/domain"
	"thinktank-service/internal/security"
)

// Handler exposes the REST surface. Every route except /healthz is
// user-scoped: the user id comes from the bearer token when an auth
// secret is configured, otherwise from the X-User-ID header (dev mode).
type Handler struct {
	users    *app.UserService
	catalog  *app.CatalogSource
	progress *app.ProgressService
	quiz     *app.QuizService
	chat     *app.ChatService
	verifier *security.TokenVerifier
}

func NewHandler(users *app.UserService, catalog *app.CatalogSource, progress *app.ProgressService, quiz *app.QuizService, chat *app.ChatService, verifier *security.TokenVerifier) *Handler {
	return &Handler{
		users:    users,
		catalog:  catalog,
		progress: progress,
		quiz:     quiz,
		chat:     chat,
		verifier: verifier,
	}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /v1/users", h.withUser(h.upsertUser))
	mux.HandleFunc("GET /v1/users", h.withUser(h.listUsers))
	mux.HandleFunc("GET /v1/subjects", h.withUser(h.listSubjects))
	mux.HandleFunc("GET /v1/subjects/{subject}/lessons", h.withUser(h.listLessons))
	mux.HandleFunc("POST /v1/quiz/start", h.withUser(h.startQuiz))
	mux.HandleFunc("POST /v1/quiz/{session}/answer", h.withUser(h.answerQuiz))
	mux.HandleFunc("POST /v1/quiz/{session}/finish", h.withUser(h.finishQuiz))
	mux.HandleFunc("POST /v1/lessons/complete", h.withUser(h.completeLesson))
	mux.HandleFunc("GET /v1/leaderboard", h.withUser(h.leaderboard))
	mux.HandleFunc("GET /v1/chats/{peer}/messages", h.withUser(h.chatMessages))
	mux.HandleFunc("POST /v1/chats/{peer}/messages", h.withUser(h.chatSend))
	mux.HandleFunc("POST /v1/chats/{peer}/read", h.withUser(h.chatRead))
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (h *Handler) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.Identify(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		next(w, r, userID)
	}
}

// Identify resolves the requesting user. Token auth when a secret is
// configured; header fallback otherwise. WebSocket clients may pass
// the token as a query parameter.
func (h *Handler) Identify(r *http.Request) (string, error) {
	if h.verifier == nil {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			userID = r.URL.Query().Get("userId")
		}
		if userID == "" {
			return "", errors.New("missing X-User-ID header")
		}
		return userID, nil
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token == r.Header.Get("Authorization") {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return h.verifier.Verify(token)
}

func (h *Handler) upsertUser(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		LevelsCompleted int    `json:"levelsCompleted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	created, err := h.users.Upsert(r.Context(), userID, body.Name, body.Email, body.LevelsCompleted)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"userId": userID, "created": created})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request, userID string) {
	exclude := ""
	if r.URL.Query().Get("excludeMe") == "true" {
		exclude = userID
	}
	users, err := h.users.List(r.Context(), exclude)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request, _ string) {
	subjects, err := h.catalog.Subjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) listLessons(w http.ResponseWriter, r *http.Request, userID string) {
	lessons, err := h.catalog.Lessons(r.Context(), userID, r.PathValue("subject"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *Handler) startQuiz(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Subject string `json:"subject"`
		Lesson  string `json:"lesson"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	round, err := h.quiz.Start(r.Context(), userID, body.Subject, body.Lesson)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *Handler) answerQuiz(w http.ResponseWriter, r *http.Request, _ string) {
	var body struct {
		QuestionID string `json:"questionId"`
		Option     string `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	result, err := h.quiz.Answer(r.PathValue("session"), body.QuestionID, body.Option)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) finishQuiz(w http.ResponseWriter, r *http.Request, _ string) {
	summary, err := h.quiz.Finish(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) completeLesson(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Subject string `json:"subject"`
		Lesson  string `json:"lesson"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	total, err := h.progress.MarkLessonComplete(r.Context(), userID, body.Subject, body.Lesson)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"levelsCompleted": total})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request, userID string) {
	exclude := ""
	if r.URL.Query().Get("excludeMe") == "true" {
		exclude = userID
	}
	board, err := h.progress.Leaderboard(r.Context(), exclude)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) chatMessages(w http.ResponseWriter, r *http.Request, userID string) {
	messages, err := h.chat.Messages(r.Context(), userID, r.PathValue("peer"))
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) chatSend(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	message, err := h.chat.Send(r.Context(), userID, r.PathValue("peer"), body.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (h *Handler) chatRead(w http.ResponseWriter, r *http.Request, userID string) {
	flipped, err := h.chat.MarkRead(r.Context(), userID, r.PathValue("peer"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"read": flipped})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNoQuestions):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrSessionFinished):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}
