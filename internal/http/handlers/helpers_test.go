package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/campus-market/internal/auth"
	"github.com/tbourn/campus-market/internal/http/middleware"
	"github.com/tbourn/campus-market/internal/imaging"
	"github.com/tbourn/campus-market/internal/repo"
	"github.com/tbourn/campus-market/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

// ---------- test DB + wiring ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:h_%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// repoListings satisfies services.ListingDeleter with the repo package.
type repoListings struct{}

func (repoListings) ListingIDsBySeller(ctx context.Context, db *gorm.DB, sellerID string) ([]string, error) {
	return repo.ListingIDsBySeller(ctx, db, sellerID)
}

func (repoListings) DeleteListing(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteListing(ctx, db, id)
}

type testEnv struct {
	db   *gorm.DB
	auth *services.AuthService
	h    *Handlers
	r    *gin.Engine
}

// newEnv wires real services over a private database and mounts every
// route under /api the way the production router does.
func newEnv(t *testing.T) *testEnv {
	return newEnvWith(t, nil)
}

func newEnvWith(t *testing.T, override func(*Deps)) *testEnv {
	t.Helper()
	db := newHandlerDB(t)
	authSvc := services.NewAuthService(db, auth.NewIssuer("handler-test-secret-0123456789", time.Hour))
	authSvc.Cost = bcrypt.MinCost
	idemSvc := &services.IdempotencyService{DB: db, TTL: time.Hour}

	deps := Deps{
		Auth:         authSvc,
		Listings:     services.NewListingService(db),
		Transactions: &services.TransactionService{DB: db},
		Reviews:      &services.ReviewService{DB: db},
		Messages:     &services.MessageService{DB: db},
		Moderation:   &services.ModerationService{DB: db, Listings: repoListings{}},
		Reports:      &services.ReportService{DB: db},
		Idempotency:  idemSvc,
		Images:       &imaging.Store{Dir: t.TempDir(), MaxBytes: 1 << 20},
	}
	if override != nil {
		override(&deps)
	}
	h := New(deps)

	resolve := func(ctx context.Context, tok string) (string, string, error) {
		a, err := authSvc.Resolve(ctx, tok)
		if errors.Is(err, services.ErrForbidden) {
			return "", "", middleware.ErrForbidden
		}
		return a.ID, a.Role, err
	}
	lookup := func(ctx context.Context, userID, scope, key string, now time.Time) (*middleware.IdempotencyRecord, error) {
		rec, err := idemSvc.Lookup(ctx, userID, scope, key, now)
		if err != nil || rec == nil {
			return nil, err
		}
		return &middleware.IdempotencyRecord{ResourceID: rec.ResourceID, Status: rec.Status}, nil
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ContextLogger())
	authn := middleware.Authenticate(resolve)
	idem := middleware.Idempotency(middleware.IdempotencyOptions{}, lookup)
	admin := []gin.HandlerFunc{authn, middleware.RequireAdmin()}

	api := r.Group("/api")
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/signin", h.Signin)
	api.GET("/auth/me", authn, h.Me)
	api.PUT("/auth/profile", authn, h.UpdateProfile)
	api.GET("/users/:id", h.GetUser)

	api.GET("/items", h.ListItems)
	api.GET("/items/user/my-items", authn, h.MyItems)
	api.GET("/items/:id", middleware.OptionalAuth(resolve), h.GetItem)
	api.GET("/items/:id/similar", h.SimilarItems)
	api.POST("/items", authn, h.CreateItem)
	api.PUT("/items/:id", authn, h.UpdateItem)
	api.DELETE("/items/:id", authn, h.DeleteItem)

	api.POST("/transactions", authn, idem, h.CreateTransaction)
	api.GET("/transactions", append(admin, h.ListTransactions)...)
	api.GET("/transactions/my-transactions", authn, h.MyTransactions)
	api.GET("/transactions/:id", authn, h.GetTransaction)
	api.PUT("/transactions/:id/complete", authn, h.CompleteTransaction)
	api.PUT("/transactions/:id/cancel", authn, h.CancelTransaction)

	api.POST("/reviews", authn, idem, h.CreateReview)
	api.GET("/reviews/user/:id", h.UserReviews)
	api.GET("/reviews/user/:id/stats", h.UserReviewStats)

	api.POST("/messages", authn, h.SendMessage)
	api.GET("/messages/conversations", authn, h.Conversations)
	api.GET("/messages/conversation/:id", authn, h.Conversation)
	api.PUT("/messages/conversation/:id/read", authn, h.MarkConversationRead)
	api.GET("/messages/unread/count", authn, h.UnreadCount)

	api.POST("/reports", authn, h.CreateReport)
	api.POST("/upload", authn, h.Upload)

	adm := api.Group("/admin", admin...)
	adm.GET("/stats", h.AdminStats)
	adm.GET("/users", h.AdminListUsers)
	adm.PUT("/users/:id/suspend", h.SuspendUser)
	adm.PUT("/users/:id/verify", h.VerifyUser)
	adm.DELETE("/users/:id", h.DeleteUser)
	adm.GET("/items", h.AdminListItems)
	adm.PUT("/items/:id/hide", h.HideItem)
	adm.PUT("/items/:id/availability", h.SetItemAvailability)
	adm.DELETE("/items/:id", h.AdminDeleteItem)
	adm.GET("/reports", h.ListReports)
	adm.PUT("/reports/:id", h.ResolveReport)

	return &testEnv{db: db, auth: authSvc, h: h, r: r}
}

// ---------- identities ----------

type session struct {
	ID    string
	Token string
}

func (e *testEnv) signup(t *testing.T, email string) session {
	t.Helper()
	s, err := e.auth.Signup(context.Background(), services.SignupInput{
		Name: "Student " + email, Email: email, Password: "password123",
		Department: "CSE", Semester: 3, RollNumber: "R-" + email, Phone: "212-555-1212",
	})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return session{ID: s.User.ID, Token: s.Token}
}

func (e *testEnv) admin(t *testing.T) session {
	t.Helper()
	ctx := context.Background()
	if err := e.auth.BootstrapAdmin(ctx, "root@campus.edu", "admin-password"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	s, err := e.auth.Signin(ctx, "root@campus.edu", "admin-password")
	if err != nil {
		t.Fatalf("admin signin: %v", err)
	}
	return session{ID: s.User.ID, Token: s.Token}
}

// ---------- requests ----------

func (e *testEnv) do(method, path, token string, body any, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status=%d want %d body=%s", w.Code, want, w.Body.String())
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	expectStatus(t, w, status)
	var er ErrorResponse
	decodeInto(t, w, &er)
	if er.Error != code {
		t.Fatalf("error=%q want %q (message %q)", er.Error, code, er.Message)
	}
	if er.RequestID == "" {
		t.Fatalf("missing request_id in %s", w.Body.String())
	}
	return er
}

// saleItem is a valid create payload; mut may adjust it.
func saleItem(mut func(m map[string]any)) map[string]any {
	m := map[string]any{
		"title":       "Engineering Mathematics",
		"description": "B.S. Grewal, 42nd edition",
		"type":        "sale",
		"category":    "textbook",
		"department":  "cse",
		"semester":    2,
		"condition":   "good",
		"price":       450,
		"images":      []string{"/uploads/a.jpg"},
		"location":    "Library gate",
	}
	if mut != nil {
		mut(m)
	}
	return m
}

type itemBody struct {
	ID          string  `json:"id"`
	SellerID    string  `json:"seller_id"`
	Title       string  `json:"title"`
	Department  string  `json:"department"`
	Price       float64 `json:"price"`
	IsAvailable bool    `json:"is_available"`
	IsHidden    bool    `json:"is_hidden"`
	Views       int64   `json:"views"`
	Seller      *struct {
		Name string `json:"name"`
	} `json:"seller"`
}

func (e *testEnv) createItem(t *testing.T, s session, mut func(m map[string]any)) itemBody {
	t.Helper()
	w := e.do(http.MethodPost, "/api/items", s.Token, saleItem(mut))
	expectStatus(t, w, http.StatusCreated)
	var it itemBody
	decodeInto(t, w, &it)
	return it
}

type txBody struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	Status    string `json:"status"`
}

func (e *testEnv) createTx(t *testing.T, buyer session, it itemBody, hdr ...string) txBody {
	t.Helper()
	w := e.do(http.MethodPost, "/api/transactions", buyer.Token,
		map[string]any{"listing_id": it.ID, "seller_id": it.SellerID}, hdr...)
	expectStatus(t, w, http.StatusCreated)
	var tx txBody
	decodeInto(t, w, &tx)
	return tx
}

type pageBody[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func stringsReader(s string) io.Reader { return strings.NewReader(s) }
