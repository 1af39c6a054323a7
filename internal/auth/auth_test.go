package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/openlearn/openlearn-lms/internal/rbac"
	"github.com/openlearn/openlearn-lms/internal/roster"
)

func TestJWTRoundTrip(t *testing.T) {
	a := NewAuthService("test-secret", time.Hour)
	tok, err := a.IssueJWT("user-1", "instructor")
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	claims, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "instructor" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	tok, err := NewAuthService("secret-a", time.Hour).IssueJWT("u", "student")
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if _, err := NewAuthService("secret-b", time.Hour).Parse(tok); err == nil {
		t.Error("token signed with another key must not parse")
	}
}

func TestJWTMiddlewareAttachesIdentity(t *testing.T) {
	a := NewAuthService("test-secret", time.Hour)
	tok, _ := a.IssueJWT("user-9", "admin")

	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = rbac.SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotSub != "user-9" || gotRole != "admin" {
		t.Errorf("context sub=%q role=%q", gotSub, gotRole)
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	a := NewAuthService("test-secret", time.Hour)
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

type fakeUsers struct{ u roster.User }

func (f fakeUsers) GetUserByEmail(_ context.Context, email string) (roster.User, error) {
	if email != f.u.Email {
		return roster.User{}, roster.ErrUserNotFound
	}
	return f.u, nil
}

func TestLoginHandler(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	a := NewAuthService("test-secret", time.Hour)
	h := LoginHandler(a, fakeUsers{u: roster.User{
		ID: "u1", Email: "ada@example.com", Role: "student", PasswordHash: string(hash),
	}})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"email":"ada@example.com","password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid login: status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["access_token"] == "" || resp["role"] != "student" || resp["user_id"] != "u1" {
		t.Errorf("response = %v", resp)
	}
	if _, err := a.Parse(resp["access_token"]); err != nil {
		t.Errorf("issued token does not parse: %v", err)
	}

	if rec := post(`{"email":"ada@example.com","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d", rec.Code)
	}
	if rec := post(`{"email":"nobody@example.com","password":"hunter2"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: status = %d", rec.Code)
	}
	if rec := post(`{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", rec.Code)
	}
}
