package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// authenticator resolves Google Cloud credentials, in order:
//  1. the configured credentials file
//  2. Application Default Credentials (GOOGLE_APPLICATION_CREDENTIALS, gcloud ADC, metadata server)
//  3. an access token printed by the gcloud CLI
type authenticator struct {
	credentialsFile string
	runner          CommandRunner

	findDefault func(ctx context.Context, scopes ...string) (*google.Credentials, error)
	getenv      func(string) string
}

func newAuthenticator(credentialsFile string, runner CommandRunner) authenticator {
	return authenticator{
		credentialsFile: credentialsFile,
		runner:          runner,
		findDefault:     google.FindDefaultCredentials,
		getenv:          os.Getenv,
	}
}

func (a authenticator) clientOptions(ctx context.Context) ([]option.ClientOption, error) {
	scopes := texttospeech.DefaultAuthScopes()

	if a.credentialsFile != "" {
		path, err := homedir.Expand(a.credentialsFile)
		if err != nil {
			return nil, tts.AuthenticationFailure("invalid credentials file path", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, tts.AuthenticationFailure("failed to read credentials file", err).WithContext("path", path)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, tts.AuthenticationFailure("invalid credentials file", err).WithContext("path", path)
		}
		log.Debug("Using Google credentials file", "path", path)
		return []option.ClientOption{option.WithCredentials(creds)}, nil
	}

	creds, adcErr := a.findDefault(ctx, scopes...)
	if adcErr == nil {
		log.Debug("Using Google Application Default Credentials", "project", creds.ProjectID)
		return []option.ClientOption{option.WithCredentials(creds)}, nil
	}

	token, err := a.gcloudToken(ctx)
	if err != nil {
		return nil, tts.AuthenticationFailure(
			"no Google Cloud credentials found; set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login'",
			fmt.Errorf("%w; gcloud: %v", adcErr, err))
	}
	log.Debug("Using gcloud CLI access token")
	return []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})),
	}, nil
}

// gcloudToken asks the gcloud CLI for an access token.
func (a authenticator) gcloudToken(ctx context.Context) (string, error) {
	path, err := a.runner.LookPath("gcloud")
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stdout, stderr, err := a.runner.Run(ctx, path, []string{"auth", "print-access-token"}, strings.NewReader(""))
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(stderr)))
	}

	token := strings.TrimSpace(string(stdout))
	if token == "" {
		return "", fmt.Errorf("gcloud printed no access token")
	}
	return token, nil
}

// present reports whether any credential source looks configured, without
// fetching a token.
func (a authenticator) present() bool {
	if a.credentialsFile != "" {
		if path, err := homedir.Expand(a.credentialsFile); err == nil {
			if _, err := os.Stat(path); err == nil {
				return true
			}
		}
	}

	for _, env := range []string{"GOOGLE_APPLICATION_CREDENTIALS", "GCLOUD_PROJECT", "GOOGLE_CLOUD_PROJECT"} {
		if a.getenv(env) != "" {
			return true
		}
	}

	if home, err := homedir.Dir(); err == nil {
		adc := filepath.Join(home, ".config", "gcloud", "application_default_credentials.json")
		if _, err := os.Stat(adc); err == nil {
			return true
		}
	}

	_, err := a.runner.LookPath("gcloud")
	return err == nil
}
