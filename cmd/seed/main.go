// Command seed populates the database with the two roles, a demo vendor and
// buyer, and a few products. It is idempotent: rerunning it changes nothing.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/vendmart/server/internal/config"
	"github.com/vendmart/server/internal/models"
	"github.com/vendmart/server/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	username string
	password string
	role     string
	balance  int
}

type seedProduct struct {
	name   string
	cost   int
	amount int
	seller string
}

var seedUsers = []seedUser{
	{username: "demo_vendor", password: "vendorpass1", role: models.RoleVendor},
	{username: "demo_buyer", password: "buyerpass1", role: models.RoleBuyer, balance: 500},
}

var seedProducts = []seedProduct{
	{name: "Cola Can", cost: 95, amount: 12, seller: "demo_vendor"},
	{name: "Salted Crisps", cost: 120, amount: 8, seller: "demo_vendor"},
	{name: "Chewing Gum", cost: 35, amount: 40, seller: "demo_vendor"},
}

func main() {
	flag.Parse()

	cfg := config.LoadConfig()

	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	repo := repository.NewPostgresRepository(db)
	ctx := context.Background()

	users := map[string]*models.User{}
	for _, su := range seedUsers {
		existing, err := repo.GetUserByUsername(ctx, su.username)
		if err != nil {
			log.Fatalf("Failed to look up user %s: %v", su.username, err)
		}
		if existing != nil {
			users[su.username] = existing
			continue
		}

		role, err := repo.GetRoleByTitle(ctx, su.role)
		if err != nil || role == nil {
			log.Fatalf("Failed to resolve role %s: %v", su.role, err)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(su.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}

		user := &models.User{
			Username: su.username,
			Password: string(hashed),
			Balance:  su.balance,
			RoleID:   role.ID,
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			log.Fatalf("Failed to create user %s: %v", su.username, err)
		}
		users[su.username] = user
		log.Printf("Created user %s (%s)", su.username, su.role)
	}

	existing, err := repo.ListProducts(ctx)
	if err != nil {
		log.Fatalf("Failed to list products: %v", err)
	}
	have := map[string]bool{}
	for _, p := range existing {
		have[p.ProductName] = true
	}

	for _, sp := range seedProducts {
		if have[sp.name] {
			continue
		}

		seller, ok := users[sp.seller]
		if !ok {
			log.Fatalf("Unknown seller %s for product %s", sp.seller, sp.name)
		}

		product := &models.Product{
			ProductName:     sp.name,
			AmountAvailable: sp.amount,
			Cost:            sp.cost,
			SellerID:        seller.ID,
		}
		if err := repo.CreateProduct(ctx, product); err != nil {
			log.Fatalf("Failed to create product %s: %v", sp.name, err)
		}
		log.Printf("Created product %s", sp.name)
	}

	log.Println("Seeding complete")
}
