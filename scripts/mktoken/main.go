// Mktoken issues an access/refresh pair for an existing user, straight
// against the database. Useful for load tests and manual API poking.
// Run from project root: go run ./scripts/mktoken -email user1@example.com
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"todoapi/internal/auth"
	"todoapi/internal/database"
	"todoapi/internal/models"
	"todoapi/internal/store/postgres"
)

func main() {
	email := flag.String("email", "", "email of the user to issue a token for")
	flag.Parse()
	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: mktoken -email <email>")
		os.Exit(1)
	}

	loadEnvFile(".env")

	ctx := context.Background()
	db := database.DB(ctx)
	if db == nil {
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set or DB connection failed")
		os.Exit(1)
	}
	st := postgres.NewStore(db)

	user, err := st.GetUserByEmail(ctx, *email)
	if err != nil {
		fmt.Fprintln(os.Stderr, "User lookup failed:", err)
		os.Exit(1)
	}

	secret, secretHash, err := auth.NewAccessSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Secret generation failed:", err)
		os.Exit(1)
	}
	refresh, refreshHash, err := auth.NewRefreshToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Refresh generation failed:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	token := models.Token{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		TokenHash:        secretHash,
		RefreshTokenHash: refreshHash,
		AccessExpiresAt:  now.Add(auth.AccessTokenTTL),
		RefreshExpiresAt: now.Add(auth.RefreshTokenTTL),
		CreatedAt:        now,
	}
	// Issued alongside existing sessions; nothing is revoked.
	if _, err := st.CreateToken(ctx, token); err != nil {
		fmt.Fprintln(os.Stderr, "Token insert failed:", err)
		os.Exit(1)
	}

	out := auth.TokenPair{
		AccessToken:  auth.FormatAccessToken(token.ID, secret),
		RefreshToken: refresh,
		TokenType:    auth.TokenType,
		ExpiresIn:    int(auth.AccessTokenTTL.Seconds()),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
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
