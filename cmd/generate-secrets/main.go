package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/carenest/therapy-booking/internal/utils"
	"github.com/carenest/therapy-booking/pkg/jwt"
)

// generate-secrets prints a fresh JWT_SECRET, or with -token-for signs a development
// access token against the JWT_SECRET already in the environment.
func main() {
	tokenFor := flag.String("token-for", "", "user id to sign a development access token for")
	roles := flag.String("roles", "guardian", "comma separated roles carried by the token")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to JWT_DEV_TOKEN_EXPIRY")
	flag.Parse()

	if *tokenFor != "" {
		printDevToken(*tokenFor, *roles, *ttl)
		return
	}

	secret, err := utils.GenerateSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("# Add to the booking API environment. Must match the account service signing key.")
	fmt.Printf("JWT_SECRET=%s\n", secret)
}

func printDevToken(userID, roles string, ttl time.Duration) {
	_ = godotenv.Load()

	if env := os.Getenv("ENVIRONMENT"); env == "production" {
		log.Fatal("refusing to mint development tokens with ENVIRONMENT=production")
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		log.Fatalf("invalid user id %q: %v", userID, err)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "carenest-booking"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
		if raw := os.Getenv("JWT_DEV_TOKEN_EXPIRY"); raw != "" {
			if seconds, err := time.ParseDuration(raw + "s"); err == nil {
				ttl = seconds
			}
		}
	}

	token, err := jwt.NewService(secret, issuer, ttl).Issue(id, utils.SplitRoles(roles))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
