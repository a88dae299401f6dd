package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vendmart/server/internal/api/testutils"
	"github.com/vendmart/server/internal/models"
)

func TestRegister(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful registration
	registerReq := models.RegisterRequest{
		Username: "new_vendor",
		Password: "password123",
		Role:     models.RoleVendor,
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/user",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.UserResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.NotNil(t, resp.User)
	assert.Equal(t, "new_vendor", resp.User.Username)
	assert.Equal(t, models.RoleVendor, resp.User.Role)
	assert.Equal(t, 0, resp.User.Balance)

	// Test case 2: Duplicate username, case-insensitive
	registerReq.Username = "NEW_VENDOR"
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/user",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp models.ErrorResponse
	err = json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.Errors, "USERNAME_TAKEN")

	// Test case 3: Invalid fields land in form_errors
	registerReq = models.RegisterRequest{
		Username: "ab",
		Password: "short",
		Role:     "admin",
	}
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/user",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	err = json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.FormErrors["username"], "INVALID_LENGTH")
	assert.Contains(t, errResp.FormErrors["password"], "INVALID_LENGTH")
	assert.Contains(t, errResp.FormErrors["role"], "INVALID_ROLE")
}

func TestLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test users are created with password "testpassword"
	loginReq := models.LoginRequest{
		Username: "test_buyer",
		Password: "testpassword",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/user/login",
		loginReq,
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.UserResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, testCtx.BuyerID, resp.User.ID)

	// The issued token is usable on a protected route
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/user/me",
		nil,
		testutils.AuthHeaders(resp.Token),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	// Wrong password: same failure on both fields
	loginReq.Password = "wrongpassword"
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/user/login",
		loginReq,
		nil,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp models.ErrorResponse
	err = json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.FormErrors["username"], "INVALID_LOGIN")
	assert.Contains(t, errResp.FormErrors["password"], "INVALID_LOGIN")
}

func TestAuthMiddleware(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// No token
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/user/me",
		nil,
		nil,
	)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var errResp models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.Errors, "MISSING_TOKEN")

	// Garbage token
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/user/me",
		nil,
		testutils.AuthHeaders("garbage.token.value"),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)

	err = json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.Errors, "INVALID_TOKEN")

	// Legacy Auth header is accepted too
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/user/me",
		nil,
		map[string]string{"Auth": testCtx.BuyerJWT},
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.UserResponse
	err = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, testCtx.BuyerID, resp.User.ID)
	assert.Equal(t, models.RoleBuyer, resp.User.Role)
}
