package connection

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/option"

	"tasknotify/config"
)

// FBConnection opens a Firestore client. With an emulator host configured the
// credentials file is skipped.
func FBConnection(ctx context.Context, cfg config.Config) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.EmulatorHost == "" {
		if cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS_1 is not set")
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting firestore client: %w", err)
	}
	return client, nil
}
