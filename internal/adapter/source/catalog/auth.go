package catalog

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/mmcdole/reel/internal/domain"
	"golang.org/x/term"
)

const authTimeout = 30 * time.Second

// AuthFlow implements domain.AuthFlow for username/password sign-in
type AuthFlow struct {
	logger *slog.Logger
}

// NewAuthFlow creates a new catalog sign-in flow
func NewAuthFlow(logger *slog.Logger) *AuthFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthFlow{logger: logger}
}

// Run prompts for credentials and signs in against the catalog server
func (f *AuthFlow) Run(ctx context.Context, serverURL string) (*domain.AuthResult, error) {
	fmt.Println()
	fmt.Println("Sign in to reel")
	fmt.Println("━━━━━━━━━━━━━━━")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	// Hidden input
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	client := NewClient(serverURL, "", f.logger)
	result, err := client.Login(ctx, username, string(passwordBytes))
	if err != nil {
		f.logger.Error("sign-in failed", "error", err, "username", username)
		return nil, err
	}

	fmt.Println()
	fmt.Println("Signed in as", result.Username)
	return result, nil
}
