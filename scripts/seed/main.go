// Seed creates demo users (password "password") and todos for each.
// Run from project root: go run ./scripts/seed
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"todoapi/internal/database"
	"todoapi/internal/models"
	"todoapi/internal/store/postgres"
)

const (
	numUsers     = 5
	todosPerUser = 20
	password     = "password"
)

func main() {
	loadEnvFile(".env")

	ctx := context.Background()
	db := database.DB(ctx)
	if db == nil {
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set or DB connection failed")
		os.Exit(1)
	}
	if err := database.MigrateOrCreateSchema(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Schema failed:", err)
		os.Exit(1)
	}

	st := postgres.NewStore(db)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Hash failed:", err)
		os.Exit(1)
	}

	start := time.Now()
	for i := 1; i <= numUsers; i++ {
		user, err := st.CreateUser(ctx, models.User{
			ID:           uuid.New().String(),
			Name:         fmt.Sprintf("Demo User %d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "User %d failed (already seeded?): %v\n", i, err)
			continue
		}
		for n := 1; n <= todosPerUser; n++ {
			status := models.StatusPending
			if n%3 == 0 {
				status = models.StatusCompleted
			}
			_, err := st.CreateTodo(ctx, models.Todo{
				Title:       fmt.Sprintf("Todo %d for %s", n, user.Name),
				Description: fmt.Sprintf("Description for todo %d", n),
				Status:      status,
				UserID:      user.ID,
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, "Todo insert failed:", err)
				os.Exit(1)
			}
		}
		fmt.Printf("Seeded %s (%s) with %d todos\n", user.Email, password, todosPerUser)
	}
	fmt.Printf("Done in %v\n", time.Since(start))
}

func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			val = strings.Trim(val, `"`)
		} else if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
			val = strings.Trim(val, "'")
		}
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
