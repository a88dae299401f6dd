package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendmart/server/internal/api/testutils"
	"github.com/vendmart/server/internal/models"
)

func buyerBalance(t *testing.T, testCtx *testutils.TestContext, token string) int {
	t.Helper()

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/user/me",
		nil,
		testutils.AuthHeaders(token),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.User.Balance
}

func productStock(t *testing.T, testCtx *testutils.TestContext, productID int) int {
	t.Helper()

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/product/%d", productID),
		nil,
		nil,
	)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Product.AmountAvailable
}

func TestPurchase(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	product := createProduct(t, testCtx, testCtx.VendorJWT, "Cola Can", 100, 5)

	// Balance 275, price 100: buying 2 must return change [50, 20, 5]
	for _, amount := range []int{100, 100, 50, 20, 5} {
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/api/user/deposit",
			models.DepositRequest{Amount: amount},
			testutils.AuthHeaders(testCtx.BuyerJWT),
		)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/product/buy/%d", product.ID),
		models.BuyRequest{Amount: 2},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.BuyResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, 2, resp.AmountPurchased)
	assert.Equal(t, 200, resp.TransactionAmount)
	assert.Equal(t, []int{50, 20, 5}, resp.Change)
	assert.Equal(t, 3, resp.Product.AmountAvailable)

	// Both sides of the transfer are committed
	assert.Equal(t, 75, buyerBalance(t, testCtx, testCtx.BuyerJWT))
	assert.Equal(t, 200, buyerBalance(t, testCtx, testCtx.VendorJWT))
	assert.Equal(t, 3, productStock(t, testCtx, product.ID))
}

func TestPurchaseExactBalance(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	product := createProduct(t, testCtx, testCtx.VendorJWT, "Chewing Gum", 50, 1)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/user/deposit",
		models.DepositRequest{Amount: 50},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/product/buy/%d", product.ID),
		models.BuyRequest{Amount: 1},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.BuyResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, []int{}, resp.Change)
	assert.Equal(t, 0, buyerBalance(t, testCtx, testCtx.BuyerJWT))
}

func TestPurchaseRejections(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	product := createProduct(t, testCtx, testCtx.VendorJWT, "Energy Drink", 100, 2)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/user/deposit",
		models.DepositRequest{Amount: 50},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	// Unknown product
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/product/buy/999999",
		models.BuyRequest{Amount: 1},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var errResp models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.Errors, "WRONG_PRODUCT_ID")

	// An unknown product outranks a malformed amount
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/product/buy/999999",
		map[string]interface{}{"amount": "two"},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)

	assert.Equal(t, http.StatusNotFound, w.Code)

	err = json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.Errors, "WRONG_PRODUCT_ID")

	// Non-integer amount never reaches the ledger
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/product/buy/%d", product.ID),
		map[string]interface{}{"amount": "two"},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	err = json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.Errors, "NAN_PRODUCT_AMOUNT")

	// Insufficient funds
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/product/buy/%d", product.ID),
		models.BuyRequest{Amount: 1},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)

	err = json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.Errors, "INSUFFICIENT_FUNDS")

	// Not enough stock
	for i := 0; i < 3; i++ {
		w = testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/api/user/deposit",
			models.DepositRequest{Amount: 100},
			testutils.AuthHeaders(testCtx.BuyerJWT),
		)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/product/buy/%d", product.ID),
		models.BuyRequest{Amount: 3},
		testutils.AuthHeaders(testCtx.BuyerJWT),
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	err = json.Unmarshal(w.Body.Bytes(), &errResp)
	assert.NoError(t, err)
	assert.Contains(t, errResp.Errors, "NOT_ENOUGH_STOCK")

	// Every rejection left the state untouched (verified by re-read)
	assert.Equal(t, 350, buyerBalance(t, testCtx, testCtx.BuyerJWT))
	assert.Equal(t, 0, buyerBalance(t, testCtx, testCtx.VendorJWT))
	assert.Equal(t, 2, productStock(t, testCtx, product.ID))
}

func TestConcurrentPurchaseOfLastUnit(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	product := createProduct(t, testCtx, testCtx.VendorJWT, "Last Cola Can", 100, 1)

	// Two funded buyers race for the single unit
	_, firstJWT := testutils.CreateTestUser(
		t, testCtx.Repository, string(testCtx.JWTSecret), "racer_one", models.RoleBuyer, 100)
	_, secondJWT := testutils.CreateTestUser(
		t, testCtx.Repository, string(testCtx.JWTSecret), "racer_two", models.RoleBuyer, 100)

	var wg sync.WaitGroup
	codes := make(chan int, 2)

	for _, token := range []string{firstJWT, secondJWT} {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			w := testutils.PerformRequest(
				testCtx.Router,
				http.MethodPost,
				fmt.Sprintf("/api/product/buy/%d", product.ID),
				models.BuyRequest{Amount: 1},
				testutils.AuthHeaders(token),
			)
			codes <- w.Code
		}(token)
	}

	wg.Wait()
	close(codes)

	successes := 0
	rejections := 0
	for code := range codes {
		switch code {
		case http.StatusOK:
			successes++
		case http.StatusBadRequest:
			rejections++
		default:
			t.Fatalf("unexpected status code %d", code)
		}
	}

	assert.Equal(t, 1, successes, "exactly one purchase wins")
	assert.Equal(t, 1, rejections, "the loser observes NOT_ENOUGH_STOCK")

	// Stock never goes negative
	assert.Equal(t, 0, productStock(t, testCtx, product.ID))
	assert.Equal(t, 100, buyerBalance(t, testCtx, testCtx.VendorJWT), "seller credited exactly once")
}
