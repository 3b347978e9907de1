// Command issue-token signs an access token for calling the booking API
// with the JWT settings of the current environment.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/internal/service"
	"github.com/noah-isme/sma-lesson-api/pkg/config"
)

func main() {
	userID := pflag.String("user", "", "user id placed in the token subject")
	role := pflag.String("role", string(models.RoleAdmin), "role: SUPERADMIN, ADMIN, TEACHER or STUDENT")
	email := pflag.String("email", "", "email claim")
	name := pflag.String("name", "", "full name claim")
	ttl := pflag.Duration("ttl", 0, "token lifetime, defaults to JWT_EXPIRATION")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tokenCfg := service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiration: cfg.JWT.Expiration}
	if *ttl > 0 {
		tokenCfg.Expiration = *ttl
	}

	userRole := models.UserRole(strings.ToUpper(*role))
	switch userRole {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher, models.RoleStudent:
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	token, expiresAt, err := service.NewTokenService(tokenCfg).Issue(*userID, userRole, *email, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
}
