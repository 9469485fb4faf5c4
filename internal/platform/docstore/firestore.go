package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Firestore wraps the document store client.
type Firestore struct {
	Client *firestore.Client
}

// Connect opens a Firestore client through the Firebase app. An empty
// credentials file falls back to application default credentials, which is
// also how the emulator (FIRESTORE_EMULATOR_HOST) is reached.
func Connect(ctx context.Context, projectID string, credentialsFile string) (*Firestore, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	opts := make([]option.ClientOption, 0, 1)
	if path := strings.TrimSpace(credentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore client: %w", err)
	}
	return &Firestore{Client: client}, nil
}

func (f *Firestore) Close() error {
	if f == nil || f.Client == nil {
		return nil
	}
	return f.Client.Close()
}
