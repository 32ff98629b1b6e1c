// Command token mints an access token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/himanshumudigonda/musclemeter/config"
	"github.com/himanshumudigonda/musclemeter/pkg/auth"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "", "user id")
	role := flag.String("role", "athlete", "athlete or owner")
	email := flag.String("email", "", "email claim")
	flag.Parse()

	if *sub == "" || (*role != "athlete" && *role != "owner") {
		flag.Usage()
		os.Exit(2)
	}

	v, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg, err := config.ParseConfig(v)
	if err != nil {
		logrus.Fatalf("Failed to parse config: %v", err)
	}

	manager, err := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)
	if err != nil {
		logrus.Fatalf("Failed to create token manager: %v", err)
	}
	token, err := manager.CreateAccessToken(*sub, *role, *email)
	if err != nil {
		logrus.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
