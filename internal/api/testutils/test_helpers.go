package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/vendmart/server/internal/api"
	"github.com/vendmart/server/internal/config"
	"github.com/vendmart/server/internal/models"
	"github.com/vendmart/server/internal/repository"
	"github.com/vendmart/server/internal/service"
	"github.com/vendmart/server/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	JWTSecret  []byte
	DB         *sqlx.DB

	VendorID  int
	VendorJWT string
	BuyerID   int
	BuyerJWT  string
}

// SetupTestContext creates a new test context with initialized dependencies
func SetupTestContext(t *testing.T) *TestContext {
	// Load configuration from environment
	cfg := config.LoadConfig()

	// Always run against the dedicated test database
	if cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	} else {
		cfg.Database.DBName = "vendmart_test"
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "test-secret-key"
	}

	// Set up database (runs migrations, seeds roles)
	db, err := config.SetupDatabase(cfg)
	assert.NoError(t, err, "Failed to set up test database")

	repo := repository.NewPostgresRepository(db)
	svc := service.NewDefaultService(repo, cfg.Auth.JWTSecret, utils.NewLogger())
	handler := api.NewHandler(svc)

	gin.SetMode(gin.TestMode)
	router := gin.Default()
	handler.SetupRoutes(router)

	cleanupTestDatabase(t, repo)

	vendorID, vendorJWT := CreateTestUser(t, repo, cfg.Auth.JWTSecret, "test_vendor", models.RoleVendor, 0)
	buyerID, buyerJWT := CreateTestUser(t, repo, cfg.Auth.JWTSecret, "test_buyer", models.RoleBuyer, 0)

	return &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		DB:         db,
		VendorID:   vendorID,
		VendorJWT:  vendorJWT,
		BuyerID:    buyerID,
		BuyerJWT:   buyerJWT,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		cleanupTestDatabase(nil, t.Repository)
		t.DB.Close()
	}
}

// cleanupTestDatabase removes any existing test users and data
func cleanupTestDatabase(t *testing.T, repo repository.Repository) {
	pgRepo, ok := repo.(*repository.PostgresRepository)
	if !ok {
		return
	}
	db := pgRepo.GetDB()

	// Products reference users, so they go first
	_, err := db.Exec("DELETE FROM products")
	if t != nil && err != nil {
		t.Logf("Warning: Failed to clean products: %v", err)
	}

	_, err = db.Exec("DELETE FROM users")
	if t != nil && err != nil {
		t.Logf("Warning: Failed to clean users: %v", err)
	}
}

// CreateTestUser inserts a user with the given role and balance and returns
// its id together with a signed JWT for it.
func CreateTestUser(t *testing.T, repo repository.Repository, jwtSecret, username, roleTitle string, balance int) (int, string) {
	role, err := repo.GetRoleByTitle(context.Background(), roleTitle)
	assert.NoError(t, err, "Failed to get role")
	assert.NotNil(t, role, "Role %s not seeded", roleTitle)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		Username: username,
		Password: string(hashedPassword),
		Balance:  balance,
		RoleID:   role.ID,
	}

	err = repo.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	// Generate JWT token with the provided secret key
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.Itoa(user.ID),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(jwtSecret))
	assert.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
