// Command createuser adds an account that can sign in to the API.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/luzparatodos-am/localidades-backend/internal/auth"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/db"
	"github.com/luzparatodos-am/localidades-backend/internal/observability"
)

func main() {
	var (
		username = flag.String("username", "", "login name (required)")
		admin    = flag.Bool("admin", false, "grant access to the admin endpoints")
	)
	flag.Parse()

	if *username == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Prompted on stdin unless CREATEUSER_PASSWORD is set.
	password := os.Getenv("CREATEUSER_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatal("no password given")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := observability.NewLogger(cfg)

	d, err := db.Connect(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := auth.Migrate(d); err != nil {
		log.Fatal(err)
	}

	role := auth.RoleUser
	if *admin {
		role = auth.RoleAdmin
	}
	user, err := auth.NewStore(d).CreateUser(context.Background(), *username, password, role)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("user created", "username", user.Username, "role", user.Role, "user_id", user.UserID)
}
