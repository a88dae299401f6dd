package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/vendmart/server/internal/apperrors"
	"github.com/vendmart/server/internal/models"
)

// PurchaseResult is the committed outcome of a purchase transaction.
type PurchaseResult struct {
	Product           models.Product
	AmountPurchased   int
	TransactionAmount int
	BuyerBalance      int
}

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	UpdateUserToken(ctx context.Context, id int, token string) error

	// Role operations
	GetRoleByID(ctx context.Context, id int) (*models.Role, error)
	GetRoleByTitle(ctx context.Context, title string) (*models.Role, error)

	// Ledger operations
	Deposit(ctx context.Context, userID, amount int) (int, error)
	ResetBalance(ctx context.Context, userID int) (int, error)

	// Catalog operations
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id int, req models.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int) error

	// PurchaseProduct performs the whole purchase state transition in one
	// transaction: debit buyer, credit seller, decrement stock.
	PurchaseProduct(ctx context.Context, buyerID, productID, amount int) (*PurchaseResult, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// uniqueViolation is the Postgres error code raised by the case-insensitive
// username index.
const uniqueViolation = "23505"

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password, balance, role_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Password, user.Balance, user.RoleID).Scan(&user.ID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.ErrUsernameTaken
	}

	return err
}

func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT * FROM users WHERE lower(username) = lower($1)`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) UpdateUserToken(ctx context.Context, id int, token string) error {
	query := `UPDATE users SET token = $1 WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, token, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrUserNotFound
	}

	return nil
}

// Role repository methods
func (r *PostgresRepository) GetRoleByID(ctx context.Context, id int) (*models.Role, error) {
	query := `SELECT * FROM roles WHERE id = $1`

	var role models.Role
	err := r.db.GetContext(ctx, &role, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &role, nil
}

func (r *PostgresRepository) GetRoleByTitle(ctx context.Context, title string) (*models.Role, error) {
	query := `SELECT * FROM roles WHERE title = $1`

	var role models.Role
	err := r.db.GetContext(ctx, &role, query, title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &role, nil
}

// Ledger repository methods
func (r *PostgresRepository) Deposit(ctx context.Context, userID, amount int) (int, error) {
	query := `UPDATE users SET balance = balance + $1 WHERE id = $2 RETURNING balance`

	var balance int
	err := r.db.QueryRowContext(ctx, query, amount, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.ErrUserNotFound
		}
		return 0, err
	}

	return balance, nil
}

func (r *PostgresRepository) ResetBalance(ctx context.Context, userID int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var balance int
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.ErrUserNotFound
		}
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE users SET balance = 0 WHERE id = $1`, userID)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return balance, nil
}

// Catalog repository methods
func (r *PostgresRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (product_name, amount_available, cost, seller_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		product.ProductName, product.AmountAvailable, product.Cost, product.SellerID).Scan(&product.ID)
}

func (r *PostgresRepository) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	query := `SELECT * FROM products WHERE id = $1`

	var product models.Product
	err := r.db.GetContext(ctx, &product, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Product not found
		}
		return nil, err
	}

	return &product, nil
}

func (r *PostgresRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	query := `SELECT * FROM products ORDER BY id`

	products := []models.Product{}
	err := r.db.SelectContext(ctx, &products, query)
	if err != nil {
		return nil, err
	}

	return products, nil
}

// UpdateProduct writes only the supplied columns in a single statement, so a
// partial update never clobbers a column a concurrent purchase just changed.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, id int, req models.UpdateProductRequest) (*models.Product, error) {
	query := `
		UPDATE products
		SET product_name = COALESCE($1, product_name),
			amount_available = COALESCE($2, amount_available),
			cost = COALESCE($3, cost)
		WHERE id = $4
		RETURNING id, product_name, amount_available, cost, seller_id
	`

	var product models.Product
	err := r.db.GetContext(ctx, &product, query, req.Name, req.Amount, req.Cost, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrWrongProductID
		}
		return nil, err
	}

	return &product, nil
}

func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int) error {
	// Hard delete. Soft delete can replace this without touching callers.
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrWrongProductID
	}

	return nil
}

// PurchaseProduct runs the purchase state transition atomically. Both user
// rows are locked in ascending id order and the product row after them, so
// two concurrent purchases of the same product serialize: the second one
// observes the first's committed stock decrement. Funds and stock are checked
// under the locks, before any mutation.
func (r *PostgresRepository) PurchaseProduct(ctx context.Context, buyerID, productID, amount int) (*PurchaseResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Resolve the seller before taking any lock.
	var sellerID int
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id FROM products WHERE id = $1`, productID).Scan(&sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrWrongProductID
		}
		return nil, err
	}

	buyerBalance, err := lockUserBalances(ctx, tx, buyerID, sellerID)
	if err != nil {
		return nil, err
	}

	var product models.Product
	err = tx.GetContext(ctx, &product,
		`SELECT * FROM products WHERE id = $1 FOR UPDATE`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrWrongProductID
		}
		return nil, err
	}

	transactionAmount := product.Cost * amount
	if buyerBalance < transactionAmount {
		err = apperrors.ErrInsufficientFunds
		return nil, err
	}
	if product.AmountAvailable < amount {
		err = apperrors.ErrNotEnoughStock
		return nil, err
	}

	if buyerID != sellerID {
		var res sql.Result
		res, err = tx.ExecContext(ctx,
			`UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1`,
			transactionAmount, buyerID)
		if err != nil {
			return nil, fmt.Errorf("failed to debit buyer: %w", err)
		}
		var affected int64
		affected, err = res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			err = apperrors.ErrInsufficientFunds
			return nil, err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET balance = balance + $1 WHERE id = $2`,
			transactionAmount, sellerID)
		if err != nil {
			return nil, fmt.Errorf("failed to credit seller: %w", err)
		}

		buyerBalance -= transactionAmount
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`UPDATE products SET amount_available = amount_available - $1 WHERE id = $2 AND amount_available >= $1`,
		amount, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		err = apperrors.ErrNotEnoughStock
		return nil, err
	}
	product.AmountAvailable -= amount

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return &PurchaseResult{
		Product:           product,
		AmountPurchased:   amount,
		TransactionAmount: transactionAmount,
		BuyerBalance:      buyerBalance,
	}, nil
}

// lockUserBalances takes FOR UPDATE locks on the buyer and seller rows in
// ascending id order (deterministic order avoids deadlocks between
// concurrent purchases) and returns the buyer's current balance.
func lockUserBalances(ctx context.Context, tx *sqlx.Tx, buyerID, sellerID int) (int, error) {
	ids := []int{buyerID}
	if sellerID != buyerID {
		ids = append(ids, sellerID)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, balance FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to lock user rows: %w", err)
	}
	defer rows.Close()

	var buyerBalance int
	locked := 0
	for rows.Next() {
		var id, balance int
		if err := rows.Scan(&id, &balance); err != nil {
			return 0, fmt.Errorf("failed to scan user row: %w", err)
		}
		if id == buyerID {
			buyerBalance = balance
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if locked != len(ids) {
		return 0, apperrors.ErrUserNotFound
	}

	return buyerBalance, nil
}
