package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2"

	"ai-planner/internal/calendar"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: calendar-auth-helper <credentials.json> [token.json]")
	}
	credentialsFile := os.Args[1]
	tokenPath := "data/calendar_token.json"
	if len(os.Args) > 2 {
		tokenPath = os.Args[2]
	}

	credentialsData, err := os.ReadFile(credentialsFile)
	if err != nil {
		log.Fatalf("Failed to read credentials file: %v", err)
	}
	creds, err := calendar.ParseCredentials(credentialsData)
	if err != nil {
		log.Fatalf("Failed to parse credentials: %v", err)
	}
	config := calendar.NewOAuthConfig(creds)

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Printf("🔗 Google Calendar Authorization Helper\n")
	fmt.Printf("=======================================\n")
	fmt.Printf("1. Open this URL in your browser:\n")
	fmt.Printf("   %s\n\n", authURL)
	fmt.Printf("2. Authorize the application\n")
	fmt.Printf("3. Copy the authorization code and enter it below\n\n")
	fmt.Printf("📝 Enter the authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		log.Fatalf("Failed to read authorization code: %v", err)
	}

	token, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		log.Fatalf("Failed to exchange code for token: %v", err)
	}
	if err := calendar.SaveToken(tokenPath, token); err != nil {
		log.Fatalf("Failed to save token: %v", err)
	}

	fmt.Printf("\n✅ Token saved to %s\n", tokenPath)
	fmt.Printf("=======================================\n")
	fmt.Printf("Add these to your .env file:\n\n")
	fmt.Printf("GOOGLE_CALENDAR_CREDENTIALS_PATH=%s\n", credentialsFile)
	fmt.Printf("GOOGLE_CALENDAR_TOKEN_PATH=%s\n", tokenPath)
	if token.RefreshToken != "" {
		fmt.Printf("GOOGLE_CALENDAR_REFRESH_TOKEN='%s'\n", token.RefreshToken)
	}
	fmt.Printf("\nExpires: %v\n", token.Expiry)
}
