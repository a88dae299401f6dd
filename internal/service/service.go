package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vendmart/server/internal/apperrors"
	"github.com/vendmart/server/internal/coins"
	"github.com/vendmart/server/internal/models"
	"github.com/vendmart/server/internal/observability/metrics"
	"github.com/vendmart/server/internal/repository"
	"github.com/vendmart/server/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	Register(ctx context.Context, req models.RegisterRequest) (*models.UserResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.UserResponse, error)
	ResolveToken(ctx context.Context, tokenString string) (int, error)
	GetProfile(ctx context.Context, userID int) (*models.PublicUser, error)

	// Ledger
	Deposit(ctx context.Context, userID, amount int) (*models.DepositResponse, error)
	ResetDeposit(ctx context.Context, userID int) (*models.ResetResponse, error)

	// Catalog
	CreateProduct(ctx context.Context, userID int, req models.AddProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, productID int) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, userID, productID int, req models.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, userID, productID int) error

	// Purchase
	Buy(ctx context.Context, userID, productID, amount int) (*models.BuyResponse, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
	coinIndex     *coins.Index
	logger        *utils.Logger
}

// NewDefaultService creates a new DefaultService. The denomination index is
// built once here and read-only afterwards.
func NewDefaultService(repo repository.Repository, jwtSecret string, logger *utils.Logger) Service {
	return &DefaultService{
		repo:          repo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
		coinIndex:     coins.NewDefaultIndex(),
		logger:        logger,
	}
}

// Authentication methods
func (s *DefaultService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserResponse, error) {
	if formErrors := validateRegistration(req); len(formErrors) > 0 {
		return nil, &apperrors.ValidationError{FormErrors: formErrors}
	}

	role, err := s.repo.GetRoleByTitle(ctx, req.Role)
	if err != nil {
		return nil, fmt.Errorf("error getting role: %w", err)
	}
	if role == nil {
		return nil, &apperrors.ValidationError{FormErrors: map[string][]string{
			"role": {apperrors.CodeInvalidRole},
		}}
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username: strings.ToLower(req.Username),
		Password: string(hashedPassword),
		Balance:  0,
		RoleID:   role.ID,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUsernameTaken) {
			return nil, apperrors.ErrUsernameTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return &models.UserResponse{
		User: user.Public(role.Title),
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.UserResponse, error) {
	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	// Identical failure for unknown user and wrong password, on both fields.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, &apperrors.ValidationError{FormErrors: map[string][]string{
			"username": {apperrors.CodeInvalidLogin},
			"password": {apperrors.CodeInvalidLogin},
		}}
	}

	token, err := s.generateJWT(user.ID)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	// Remember the last-issued token on the user row.
	if err := s.repo.UpdateUserToken(ctx, user.ID, token); err != nil {
		return nil, fmt.Errorf("error storing token: %w", err)
	}

	role, err := s.repo.GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("error getting role: %w", err)
	}

	return &models.UserResponse{
		User:  user.Public(roleTitle(role)),
		Token: token,
	}, nil
}

// ResolveToken decodes a signed token and resolves it to an existing user id.
// Any decode failure or unknown user yields ErrInvalidToken.
func (s *DefaultService) ResolveToken(ctx context.Context, tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, apperrors.ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, apperrors.ErrInvalidToken
	}

	userID, err := strconv.Atoi(sub)
	if err != nil {
		return 0, apperrors.ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return 0, apperrors.ErrInvalidToken
	}

	return user.ID, nil
}

func (s *DefaultService) GetProfile(ctx context.Context, userID int) (*models.PublicUser, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, apperrors.ErrUserNotFound
	}

	role, err := s.repo.GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("error getting role: %w", err)
	}

	return user.Public(roleTitle(role)), nil
}

// Ledger methods
func (s *DefaultService) Deposit(ctx context.Context, userID, amount int) (*models.DepositResponse, error) {
	// Only exact denominations go into the machine.
	if !s.coinIndex.Contains(amount) {
		return nil, apperrors.ErrInvalidAmount
	}

	balance, err := s.repo.Deposit(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("error depositing: %w", err)
	}

	return &models.DepositResponse{
		Balance: balance,
	}, nil
}

func (s *DefaultService) ResetDeposit(ctx context.Context, userID int) (*models.ResetResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, apperrors.ErrUserNotFound
	}

	// The balance stays untouched unless the refund can be coined.
	if _, err := coins.BuildChange(user.Balance, s.coinIndex); err != nil {
		s.logger.Error("refund not representable in coins", "user_id", userID, "amount", user.Balance)
		return nil, apperrors.ErrChangeNotRepresentable
	}

	refunded, err := s.repo.ResetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("error resetting balance: %w", err)
	}

	change, err := coins.BuildChange(refunded, s.coinIndex)
	if err != nil {
		s.logger.Error("refund not representable in coins", "user_id", userID, "amount", refunded)
		return nil, apperrors.ErrChangeNotRepresentable
	}

	return &models.ResetResponse{
		Balance:  0,
		Refunded: change,
	}, nil
}

// Catalog methods
func (s *DefaultService) CreateProduct(ctx context.Context, userID int, req models.AddProductRequest) (*models.Product, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, apperrors.ErrInvalidToken
	}

	role, err := s.repo.GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("error getting role: %w", err)
	}
	if role == nil || role.Title != models.RoleVendor {
		return nil, apperrors.ErrNotVendor
	}

	if formErrors := validateProductName(req.Name); len(formErrors) > 0 {
		return nil, &apperrors.ValidationError{FormErrors: formErrors}
	}

	// seller_id is always the authenticated user, never client-supplied.
	product := &models.Product{
		ProductName:     req.Name,
		AmountAvailable: req.Amount,
		Cost:            req.Cost,
		SellerID:        userID,
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("error creating product: %w", err)
	}

	return product, nil
}

func (s *DefaultService) GetProduct(ctx context.Context, productID int) (*models.Product, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("error getting product: %w", err)
	}
	if product == nil {
		return nil, apperrors.ErrWrongProductID
	}

	return product, nil
}

func (s *DefaultService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing products: %w", err)
	}

	return products, nil
}

func (s *DefaultService) UpdateProduct(ctx context.Context, userID, productID int, req models.UpdateProductRequest) (*models.Product, error) {
	if _, err := s.ownedProduct(ctx, userID, productID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		if formErrors := validateProductName(*req.Name); len(formErrors) > 0 {
			return nil, &apperrors.ValidationError{FormErrors: formErrors}
		}
	}
	if req.Cost != nil && *req.Cost <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if req.Amount != nil && *req.Amount < 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	// Only the supplied columns are written, so an untouched stock count can
	// keep moving under concurrent purchases.
	product, err := s.repo.UpdateProduct(ctx, productID, req)
	if err != nil {
		if errors.Is(err, apperrors.ErrWrongProductID) {
			return nil, apperrors.ErrWrongProductID
		}
		return nil, fmt.Errorf("error updating product: %w", err)
	}

	return product, nil
}

func (s *DefaultService) DeleteProduct(ctx context.Context, userID, productID int) error {
	if _, err := s.ownedProduct(ctx, userID, productID); err != nil {
		return err
	}

	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		if errors.Is(err, apperrors.ErrWrongProductID) {
			return apperrors.ErrWrongProductID
		}
		return fmt.Errorf("error deleting product: %w", err)
	}

	return nil
}

// Purchase
func (s *DefaultService) Buy(ctx context.Context, userID, productID, amount int) (*models.BuyResponse, error) {
	// Product existence is reported before the quantity is inspected.
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("error getting product: %w", err)
	}
	if product == nil {
		return nil, apperrors.ErrWrongProductID
	}

	if amount < 1 {
		return nil, apperrors.ErrNaNProductAmount
	}

	result, err := s.repo.PurchaseProduct(ctx, userID, productID, amount)
	if err != nil {
		if appErr, ok := apperrors.AsError(err); ok {
			metrics.CountPurchase("rejected")
			return nil, appErr
		}
		metrics.CountPurchase("error")
		return nil, fmt.Errorf("error processing purchase: %w", err)
	}
	metrics.CountPurchase("success")

	change, err := coins.BuildChange(result.BuyerBalance, s.coinIndex)
	if err != nil {
		// The purchase is committed; only the coin breakdown failed.
		s.logger.Error("change not representable", "user_id", userID, "balance", result.BuyerBalance)
		return nil, apperrors.ErrChangeNotRepresentable
	}
	for _, coin := range change {
		metrics.CountCoinsDispensed(strconv.Itoa(coin))
	}

	return &models.BuyResponse{
		Product:           &result.Product,
		AmountPurchased:   result.AmountPurchased,
		TransactionAmount: result.TransactionAmount,
		Change:            change,
	}, nil
}

// Helper methods
func (s *DefaultService) generateJWT(userID int) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": strconv.Itoa(userID), // subject
		"jti": uuid.New().String(),
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ownedProduct loads a product and verifies the acting user owns it.
func (s *DefaultService) ownedProduct(ctx context.Context, userID, productID int) (*models.Product, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("error getting product: %w", err)
	}
	if product == nil {
		return nil, apperrors.ErrWrongProductID
	}
	if product.SellerID != userID {
		return nil, apperrors.ErrAccessDenied
	}

	return product, nil
}

func roleTitle(role *models.Role) string {
	if role == nil {
		return ""
	}
	return role.Title
}

func validateRegistration(req models.RegisterRequest) map[string][]string {
	formErrors := map[string][]string{}

	switch {
	case req.Username == "":
		formErrors["username"] = append(formErrors["username"], apperrors.CodeRequiredField)
	case !usernameRegex.MatchString(req.Username):
		formErrors["username"] = append(formErrors["username"], apperrors.CodeInvalidUsername)
	case len(req.Username) < 4 || len(req.Username) > 25:
		formErrors["username"] = append(formErrors["username"], apperrors.CodeInvalidLength)
	}

	switch {
	case req.Password == "":
		formErrors["password"] = append(formErrors["password"], apperrors.CodeRequiredField)
	case len(req.Password) < 8 || len(req.Password) > 1000:
		formErrors["password"] = append(formErrors["password"], apperrors.CodeInvalidLength)
	}

	switch {
	case req.Role == "":
		formErrors["role"] = append(formErrors["role"], apperrors.CodeRequiredField)
	case req.Role != models.RoleVendor && req.Role != models.RoleBuyer:
		formErrors["role"] = append(formErrors["role"], apperrors.CodeInvalidRole)
	}

	return formErrors
}

func validateProductName(name string) map[string][]string {
	if name == "" {
		return map[string][]string{"name": {apperrors.CodeRequiredField}}
	}
	if len(name) < 4 || len(name) > 25 {
		return map[string][]string{"name": {apperrors.CodeInvalidLength}}
	}
	return nil
}
