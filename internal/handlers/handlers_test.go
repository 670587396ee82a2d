package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chingu-voyage4/Bears-Team-0/internal/cache"
	"github.com/chingu-voyage4/Bears-Team-0/internal/database/memory"
	"github.com/chingu-voyage4/Bears-Team-0/internal/event"
	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/chingu-voyage4/Bears-Team-0/internal/repository"
	"github.com/chingu-voyage4/Bears-Team-0/internal/service"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

type testServer struct {
	router *gin.Engine
	auth   *Auth
	db     *memory.Database
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := memory.NewDatabase()
	publisher, err := event.NewEventPublisher("")
	if err != nil {
		t.Fatalf("Failed to build publisher: %v", err)
	}
	hasher := service.NewBcryptHasher(bcrypt.MinCost)

	quizzes := service.NewQuizService(repository.NewQuizRepository(db), cache.Nop{}, publisher)
	users := service.NewUserService(repository.NewUserRepository(db, hasher), hasher, publisher)
	auth := NewAuth(testSecret)

	r := gin.New()
	RegisterRoutes(r, NewQuizHandler(quizzes), NewUserHandler(users, auth), auth)
	RegisterOps(r, "quiz-service", func(context.Context) bool { return true })

	return &testServer{router: r, auth: auth, db: db}
}

func (s *testServer) token(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	token, err := s.auth.GenerateToken(userID, roles)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode response %s: %v", w.Body.String(), err)
	}
	return envelope.Data
}

func createQuiz(t *testing.T, s *testServer, token, title string) models.Quiz {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/quizzes", token, gin.H{"quiz": gin.H{"title": title, "description": "geo"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	return decodeData[models.Quiz](t, w)
}

func TestQuizRoutesLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "u1")

	quiz := createQuiz(t, s, token, "Capitals")
	if quiz.Author != "u1" {
		t.Errorf("Expected author from token, got %q", quiz.Author)
	}
	path := "/api/quizzes/" + quiz.ID.Hex()

	w := s.do(t, http.MethodPost, path+"/favorites", token, gin.H{"delta": "3"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeData[models.Quiz](t, w); got.Favorites != 3 {
		t.Errorf("Expected 3 favorites, got %d", got.Favorites)
	}

	w = s.do(t, http.MethodGet, path, "", nil)
	if got := decodeData[models.Quiz](t, w); w.Code != http.StatusOK || got.Favorites != 3 {
		t.Errorf("Expected quiz with 3 favorites, got %d %+v", w.Code, got)
	}

	w = s.do(t, http.MethodDelete, path, token, nil)
	if got := decodeData[models.Quiz](t, w); w.Code != http.StatusOK || got.Favorites != 3 {
		t.Errorf("Expected deleted quiz with last state, got %d %+v", w.Code, got)
	}

	w = s.do(t, http.MethodGet, path, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestQuizErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "u1")
	quiz := createQuiz(t, s, token, "Capitals")
	path := "/api/quizzes/" + quiz.ID.Hex()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"invalid id", http.MethodGet, "/api/quizzes/nope", "", nil, http.StatusBadRequest},
		{"missing quiz", http.MethodGet, "/api/quizzes/65f0c0ffee0000000000beef", "", nil, http.StatusNotFound},
		{"no token", http.MethodPut, path, "", gin.H{"title": "x"}, http.StatusUnauthorized},
		{"bad token", http.MethodPut, path, "garbage", gin.H{"title": "x"}, http.StatusUnauthorized},
		{"protected field", http.MethodPut, path, token, gin.H{"favorites": 10}, http.StatusForbidden},
		{"protected id", http.MethodPut, path, token, gin.H{"_id": "x"}, http.StatusForbidden},
		{"unknown field", http.MethodPut, path, token, gin.H{"colour": "red"}, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/quizzes", token, gin.H{"quiz": gin.H{"description": "d"}}, http.StatusBadRequest},
		{"missing quiz wrapper", http.MethodPost, "/api/quizzes", token, gin.H{"title": "x"}, http.StatusBadRequest},
		{"bad delta", http.MethodPost, path + "/favorites", token, gin.H{"delta": "lots"}, http.StatusBadRequest},
		{"fractional delta", http.MethodPost, path + "/favorites", token, gin.H{"delta": 1.5}, http.StatusBadRequest},
		{"min int delta", http.MethodPost, path + "/favorites", token, gin.H{"delta": "-9223372036854775808"}, http.StatusBadRequest},
		{"max int delta", http.MethodPost, path + "/favorites", token, gin.H{"delta": "9223372036854775807"}, http.StatusBadRequest},
		{"below zero", http.MethodPost, path + "/favorites", token, gin.H{"delta": -1}, http.StatusBadRequest},
		{"blank question", http.MethodPost, path + "/questions", token, gin.H{"question": ""}, http.StatusBadRequest},
		{"missing index", http.MethodPost, path + "/attempts", token, gin.H{"answer": "a"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.token, tt.body)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	w := s.do(t, http.MethodGet, path, "", nil)
	if got := decodeData[models.Quiz](t, w); got.Favorites != 0 || got.Title != "Capitals" {
		t.Errorf("Expected quiz unchanged after rejected requests, got %+v", got)
	}
}

func TestConnectionFailureIs503(t *testing.T) {
	s := newTestServer(t)
	s.db.SetFailure(errors.New("no reachable servers"))

	w := s.do(t, http.MethodGet, "/api/quizzes/count", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestPopularAndListings(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "alice")
	bob := s.token(t, "bob")

	for i := 0; i < 8; i++ {
		token := alice
		if i%2 == 1 {
			token = bob
		}
		quiz := createQuiz(t, s, token, fmt.Sprintf("quiz-%d", i))
		if i > 0 {
			w := s.do(t, http.MethodPost, "/api/quizzes/"+quiz.ID.Hex()+"/favorites", token, gin.H{"delta": i})
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
		}
	}

	popular := decodeData[[]models.Quiz](t, s.do(t, http.MethodGet, "/api/quizzes/popular", "", nil))
	if len(popular) != repository.PopularLimit {
		t.Fatalf("Expected %d popular quizzes, got %d", repository.PopularLimit, len(popular))
	}
	for i := 1; i < len(popular); i++ {
		if popular[i-1].Favorites <= popular[i].Favorites {
			t.Errorf("Expected strictly descending favorites, got %d then %d", popular[i-1].Favorites, popular[i].Favorites)
		}
	}

	if n := decodeData[int64](t, s.do(t, http.MethodGet, "/api/quizzes/count", "", nil)); n != 8 {
		t.Errorf("Expected count 8, got %d", n)
	}
	if all := decodeData[[]models.Quiz](t, s.do(t, http.MethodGet, "/api/quizzes/all", "", nil)); len(all) != 8 {
		t.Errorf("Expected 8 quizzes, got %d", len(all))
	}
	if mine := decodeData[[]models.Quiz](t, s.do(t, http.MethodPost, "/api/quizzes/userQuizzes", bob, nil)); len(mine) != 4 {
		t.Errorf("Expected 4 quizzes for bob, got %d", len(mine))
	}
	if byAuthor := decodeData[[]models.Quiz](t, s.do(t, http.MethodGet, "/api/quizzes/user/alice", "", nil)); len(byAuthor) != 4 {
		t.Errorf("Expected 4 quizzes for alice, got %d", len(byAuthor))
	}
}

func TestQuestionsAndAttempts(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "u1")
	quiz := createQuiz(t, s, token, "Capitals")
	path := "/api/quizzes/" + quiz.ID.Hex()

	w := s.do(t, http.MethodPost, path+"/questions", token, gin.H{
		"question": "Capital of Peru?",
		"options":  gin.H{"a": "Lima", "b": "Cusco"},
		"answer":   "a",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeData[models.Quiz](t, w); len(got.Questions) != 1 {
		t.Fatalf("Expected one question, got %+v", got.Questions)
	}

	w = s.do(t, http.MethodPost, path+"/attempts", token, gin.H{"questionIndex": 0, "answer": "A"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	result := decodeData[struct {
		Correct bool        `json:"correct"`
		Quiz    models.Quiz `json:"quiz"`
	}](t, w)
	if !result.Correct || result.Quiz.TotalAttempts != 1 || result.Quiz.CorrectAttempts != 1 {
		t.Errorf("Unexpected attempt result %+v", result)
	}
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/users", "", gin.H{"username": "ana", "password": "correct-horse", "roles": []string{"admin"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("passwordHash")) || bytes.Contains(w.Body.Bytes(), []byte("correct-horse")) {
		t.Errorf("Expected no credential in response: %s", w.Body.String())
	}
	ana := decodeData[models.User](t, w)
	if len(ana.Roles) != 1 || ana.Roles[0] != models.RoleUser {
		t.Errorf("Expected self-assigned roles to be ignored, got %v", ana.Roles)
	}

	if w := s.do(t, http.MethodPost, "/api/users", "", gin.H{"username": "ana", "password": "correct-horse"}); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate username, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "ana", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "ana", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	login := decodeData[struct {
		Token string `json:"token"`
	}](t, w)
	claims, err := s.auth.ValidateToken(login.Token)
	if err != nil || claims.UserID != ana.ID.Hex() {
		t.Fatalf("Expected a token for ana, got %+v (%v)", claims, err)
	}

	path := "/api/users/" + ana.ID.Hex()
	w = s.do(t, http.MethodPut, path, login.Token, gin.H{"displayName": "Ana"})
	if got := decodeData[models.User](t, w); w.Code != http.StatusOK || got.DisplayName != "Ana" {
		t.Errorf("Expected display name update, got %d %+v", w.Code, got)
	}
	if w := s.do(t, http.MethodPut, path, login.Token, gin.H{"roles": []string{"admin"}}); w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for role change by non-admin, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, path, s.token(t, "someone-else"), nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for another user's account, got %d", w.Code)
	}

	admin := s.token(t, "root", models.RoleAdmin)
	if w := s.do(t, http.MethodPut, path, admin, gin.H{"roles": []string{"admin"}}); w.Code != http.StatusOK {
		t.Errorf("Expected admin role change to succeed, got %d: %s", w.Code, w.Body.String())
	}

	if n := decodeData[int64](t, s.do(t, http.MethodGet, "/api/users/count", "", nil)); n != 1 {
		t.Errorf("Expected 1 user, got %d", n)
	}
	if w := s.do(t, http.MethodDelete, path, admin, nil); w.Code != http.StatusOK {
		t.Errorf("Expected delete to succeed, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestParseDelta(t *testing.T) {
	tests := []struct {
		raw     any
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{" -2 ", -2, false},
		{float64(4), 4, false},
		{"2147483647", 2147483647, false},
		{"-2147483648", -2147483648, false},
		{float64(-2147483648), -2147483648, false},
		{"2147483648", 0, true},
		{"-9223372036854775808", 0, true},
		{"9223372036854775807", 0, true},
		{float64(1 << 40), 0, true},
		{"1.5", 0, true},
		{float64(1.5), 0, true},
		{nil, 0, true},
		{true, 0, true},
	}

	for _, tt := range tests {
		got, err := parseDelta(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDelta(%v): unexpected error state %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDelta(%v) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	a := NewAuth("")
	if _, err := a.GenerateToken("u1", nil); err == nil {
		t.Error("Expected token generation to fail without a secret")
	}
	if _, err := a.ValidateToken("anything"); err == nil {
		t.Error("Expected validation to fail without a secret")
	}
}
