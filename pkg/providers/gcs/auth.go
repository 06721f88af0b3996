package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// credentialOptions resolves client credentials: an explicit service-account
// key file wins, then application default credentials.
func credentialOptions(ctx context.Context, credentialsFile string) ([]option.ClientOption, error) {
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file %s: %w", credentialsFile, err)
		}
		return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, storage.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("no GCS credentials: configure a credentials file or application default credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

// resolveProject finds the project for bucket creation: the key file's
// project_id, then the GOOGLE_CLOUD_PROJECT environment variable.
func resolveProject(credentialsFile string) string {
	if credentialsFile != "" {
		if data, err := os.ReadFile(credentialsFile); err == nil {
			var key struct {
				ProjectID string `json:"project_id"`
			}
			if json.Unmarshal(data, &key) == nil && key.ProjectID != "" {
				return key.ProjectID
			}
		}
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}
