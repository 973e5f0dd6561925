package firebase

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// NewAuthClient builds the Firebase auth client used to verify ID tokens at
// login. An empty credentials path disables Firebase login and returns
// (nil, nil).
func NewAuthClient(ctx context.Context, credentialsPath string, log *zap.Logger) (*auth.Client, error) {
	if credentialsPath == "" {
		log.Info("firebase credentials not configured, firebase login disabled")
		return nil, nil
	}
	if _, err := os.Stat(credentialsPath); err != nil {
		return nil, fmt.Errorf("firebase credentials %s: %w", credentialsPath, err)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}

	log.Info("firebase auth client initialized", zap.String("credentials", credentialsPath))
	return client, nil
}
