package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"fotosito/internal/config"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Graph uploads photos to a path-addressed drive API with a bearer
// token. Tokens come from either the client-credentials flow (service
// identity, fully silent) or the device-code flow (first run asks the
// operator to authorize out-of-band, later runs reuse the cached
// refresh token).
type Graph struct {
	baseURL    string
	remoteRoot string
	tokens     oauth2.TokenSource
	client     *http.Client
	logger     *zap.Logger
}

// NewGraph creates a Graph uploader from configuration.
func NewGraph(cfg *config.Config, logger *zap.Logger) (*Graph, error) {
	var tokens oauth2.TokenSource
	var err error

	switch cfg.GraphAuthFlow {
	case config.FlowClientCredentials:
		cc := &clientcredentials.Config{
			ClientID:     cfg.GraphClientID,
			ClientSecret: cfg.GraphClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.GraphTenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		tokens = cc.TokenSource(context.Background())
	case config.FlowDeviceCode:
		tokens, err = deviceTokenSource(cfg, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown Graph auth flow: %s", cfg.GraphAuthFlow)
	}

	return &Graph{
		baseURL:    cfg.GraphBaseURL,
		remoteRoot: cfg.GraphRemoteRoot,
		tokens:     tokens,
		client:     &http.Client{Timeout: cfg.UploadTimeout},
		logger:     logger,
	}, nil
}

// NewGraphWithTokenSource wires a Graph uploader around a prebuilt
// token source. Used by tests and by callers that manage their own
// credentials.
func NewGraphWithTokenSource(baseURL, remoteRoot string, tokens oauth2.TokenSource, client *http.Client, logger *zap.Logger) *Graph {
	return &Graph{
		baseURL:    baseURL,
		remoteRoot: remoteRoot,
		tokens:     tokens,
		client:     client,
		logger:     logger,
	}
}

// deviceTokenSource returns a token source backed by the device-code
// flow and a JSON token cache on disk. The interactive authorization
// wait is bounded by cfg.DeviceTimeout instead of blocking forever.
func deviceTokenSource(cfg *config.Config, logger *zap.Logger) (oauth2.TokenSource, error) {
	oc := &oauth2.Config{
		ClientID: cfg.GraphClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:       fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", cfg.GraphTenantID),
			TokenURL:      fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.GraphTenantID),
			DeviceAuthURL: fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/devicecode", cfg.GraphTenantID),
		},
		Scopes: []string{"Files.ReadWrite.All", "offline_access"},
	}

	token, err := loadCachedToken(cfg.TokenCachePath)
	if err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DeviceTimeout)
		defer cancel()

		auth, err := oc.DeviceAuth(ctx)
		if err != nil {
			return nil, fmt.Errorf("device authorization request failed: %w", err)
		}

		logger.Info("Device authorization required",
			zap.String("verification_url", auth.VerificationURI),
			zap.String("user_code", auth.UserCode),
		)
		fmt.Printf("Visit %s and enter the code %s to authorize the bot.\n", auth.VerificationURI, auth.UserCode)

		token, err = oc.DeviceAccessToken(ctx, auth)
		if err != nil {
			return nil, fmt.Errorf("device authorization was not completed: %w", err)
		}

		if err := saveCachedToken(cfg.TokenCachePath, token); err != nil {
			logger.Warn("Failed to persist token cache", zap.Error(err))
		}
	}

	return &cachingTokenSource{
		src:    oc.TokenSource(context.Background(), token),
		path:   cfg.TokenCachePath,
		last:   token.AccessToken,
		logger: logger,
	}, nil
}

// cachingTokenSource persists refreshed tokens back to the cache file
// so the next process start stays silent.
type cachingTokenSource struct {
	src    oauth2.TokenSource
	path   string
	last   string
	logger *zap.Logger
}

func (c *cachingTokenSource) Token() (*oauth2.Token, error) {
	token, err := c.src.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != c.last {
		c.last = token.AccessToken
		if err := saveCachedToken(c.path, token); err != nil {
			c.logger.Warn("Failed to persist refreshed token", zap.Error(err))
		}
	}
	return token, nil
}

func loadCachedToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token cache %s: %w", path, err)
	}
	if token.RefreshToken == "" && !token.Valid() {
		return nil, fmt.Errorf("token cache %s holds an expired token without a refresh token", path)
	}
	return &token, nil
}

func saveCachedToken(path string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Upload PUTs the file bytes to <base>/root:/<root>/<folder>/<filename>:/content.
func (g *Graph) Upload(ctx context.Context, localPath, folder, filename string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read %s for upload: %w", localPath, err)
	}

	token, err := g.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain bearer token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/root:/%s/%s/%s:/content",
		g.baseURL,
		url.PathEscape(g.remoteRoot),
		url.PathEscape(folder),
		url.PathEscape(filename),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UploadError{Status: resp.StatusCode, Body: string(body)}
	}

	g.logger.Info("Photo mirrored to drive",
		zap.String("folder", folder),
		zap.String("filename", filename),
	)
	return nil
}
