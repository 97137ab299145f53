package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/HerbHall/netlogger/internal/fsutil"
	"github.com/HerbHall/netlogger/internal/version"
)

// DriveConfig configures the Google Drive backend. Set CredentialsFile
// for a service account, or ClientSecretFile and TokenFile for an OAuth
// user token.
type DriveConfig struct {
	FolderID         string `mapstructure:"folder_id"`
	CredentialsFile  string `mapstructure:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	TokenFile        string `mapstructure:"token_file"`
}

// Validate checks that exactly one authentication method is configured.
func (c DriveConfig) Validate() error {
	oauth := c.ClientSecretFile != "" || c.TokenFile != ""
	switch {
	case c.CredentialsFile != "" && oauth:
		return errors.New("publish.drive: set credentials_file or client_secret_file/token_file, not both")
	case c.CredentialsFile != "":
		return nil
	case c.ClientSecretFile != "" && c.TokenFile != "":
		return nil
	default:
		return errors.New("publish.drive: credentials_file or client_secret_file and token_file are required")
	}
}

// driveFiles is the part of the Drive API the publisher needs.
type driveFiles interface {
	find(ctx context.Context, name string) ([]string, error)
	create(ctx context.Context, name string, content io.Reader) error
	delete(ctx context.Context, id string) error
}

// Compile-time interface guard.
var _ Publisher = (*DrivePublisher)(nil)

// DrivePublisher uploads files to a Google Drive folder. Drive allows
// duplicate names, so replace-by-name is done by listing matches,
// uploading the new file, then deleting the old matches.
type DrivePublisher struct {
	files  driveFiles
	logger *zap.Logger
}

// NewDrivePublisher authenticates and returns a Drive-backed Publisher.
func NewDrivePublisher(ctx context.Context, cfg DriveConfig, logger *zap.Logger) (*DrivePublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opt, err := driveAuth(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, opt, option.WithUserAgent(version.UserAgent()))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DrivePublisher{
		files:  &driveAPI{svc: svc, folderID: cfg.FolderID},
		logger: logger,
	}, nil
}

func (p *DrivePublisher) Name() string { return BackendDrive }

func (p *DrivePublisher) Publish(ctx context.Context, localPath string, mode Mode) error {
	name := filepath.Base(localPath)

	existing, err := p.files.find(ctx, name)
	if err != nil {
		return wrapErr(BackendDrive, localPath, fmt.Errorf("look up %q: %w", name, err))
	}
	if mode == SkipExisting && len(existing) > 0 {
		p.logger.Debug("remote file exists, skipping", zap.String("name", name))
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return wrapErr(BackendDrive, localPath, err)
	}
	defer f.Close()

	if err := p.files.create(ctx, name, f); err != nil {
		return wrapErr(BackendDrive, localPath, fmt.Errorf("upload %q: %w", name, err))
	}
	for _, id := range existing {
		if err := p.files.delete(ctx, id); err != nil {
			return wrapErr(BackendDrive, localPath, fmt.Errorf("remove previous %q (%s): %w", name, id, err))
		}
	}

	p.logger.Info("file published",
		zap.String("path", localPath),
		zap.Int("replaced", len(existing)),
	)
	return nil
}

type driveAPI struct {
	svc      *drive.Service
	folderID string
}

func (d *driveAPI) find(ctx context.Context, name string) ([]string, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	if d.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(d.folderID))
	}
	res, err := d.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(100).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		ids = append(ids, f.Id)
	}
	return ids, nil
}

func (d *driveAPI) create(ctx context.Context, name string, content io.Reader) error {
	meta := &drive.File{Name: name}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}
	_, err := d.svc.Files.Create(meta).Media(content).Fields("id").Context(ctx).Do()
	return err
}

func (d *driveAPI) delete(ctx context.Context, id string) error {
	return d.svc.Files.Delete(id).Context(ctx).Do()
}

// escapeQuery escapes a literal for the Drive search query language.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func driveAuth(ctx context.Context, cfg DriveConfig, logger *zap.Logger) (option.ClientOption, error) {
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read drive credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveFileScope)
		if err != nil {
			return nil, fmt.Errorf("parse drive credentials: %w", err)
		}
		return option.WithCredentials(creds), nil
	}

	secret, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read drive client secret: %w", err)
	}
	oc, err := google.ConfigFromJSON(secret, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive client secret: %w", err)
	}
	tok, err := readToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	ts := &persistingTokenSource{
		base:   oc.TokenSource(ctx, tok),
		path:   cfg.TokenFile,
		last:   tok.AccessToken,
		logger: logger,
	}
	return option.WithTokenSource(oauth2.ReuseTokenSource(tok, ts)), nil
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drive token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse drive token: %w", err)
	}
	return &tok, nil
}

// persistingTokenSource writes refreshed OAuth tokens back to the token
// file so the refresh token survives restarts.
type persistingTokenSource struct {
	base   oauth2.TokenSource
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		data, err := json.Marshal(tok)
		if err != nil {
			s.logger.Warn("failed to encode refreshed drive token", zap.Error(err))
			return tok, nil
		}
		if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
			s.logger.Warn("failed to persist refreshed drive token", zap.String("path", s.path), zap.Error(err))
		}
	}
	return tok, nil
}
