package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/robfig/cron/v3"

	apperrors "github.com/chorepet/chorepet/internal/errors"
	"github.com/chorepet/chorepet/internal/model"
	"github.com/chorepet/chorepet/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Config struct {
	S3         S3Config
	Passphrase string
	// Schedule is a standard five-field cron spec. Empty disables the
	// scheduled run.
	Schedule      string
	RetentionDays int
}

const (
	keyPrefix    = "chorepet/"
	keyTimestamp = "20060102T150405Z"
	keySuffix    = ".json.enc"
	jobTimeout   = 5 * time.Minute
)

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager writes encrypted household snapshots to S3-compatible storage and
// restores them into the record store.
type Manager struct {
	mu       sync.Mutex
	run      sync.Mutex
	cfg      Config
	store    store.RecordStore
	client   s3Client
	status   Status
	callback StatusCallback
	cron     *cron.Cron
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(cfg Config, rs store.RecordStore, callback StatusCallback, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		store:    rs,
		callback: callback,
		logger:   logger.With("component", "backup"),
		status:   Status{State: StateDisabled},
		now:      time.Now,
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether storage and a passphrase are configured.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) clientOrErr() (s3Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil, fmt.Errorf("backup not configured")
	}
	return m.client, nil
}

// Start schedules RunNow followed by Cleanup on the configured cron spec.
// It is a no-op when backups are disabled or no schedule is set.
func (m *Manager) Start() error {
	if !m.Enabled() || m.cfg.Schedule == "" {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(m.cfg.Schedule, m.scheduled); err != nil {
		return fmt.Errorf("schedule backups: %w", err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	m.logger.Info("backup schedule started", "schedule", m.cfg.Schedule)
	return nil
}

// Stop halts the schedule and waits for a running job to finish. Safe to
// call when Start never ran.
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func (m *Manager) scheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	if m.cfg.RetentionDays > 0 {
		if _, err := m.Cleanup(ctx, m.cfg.RetentionDays); err != nil {
			m.logger.Error("backup cleanup failed", "error", err)
		}
	}
}

// RunNow snapshots the household, encrypts it and uploads it.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	client, err := m.clientOrErr()
	if err != nil {
		return nil, err
	}

	m.run.Lock()
	defer m.run.Unlock()

	m.setStatus(Status{State: StateRunning})
	b, err := m.runBackup(ctx, client)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}
	m.setStatus(Status{State: StateIdle, LastBackup: &b.CreatedAt})
	m.logger.Info("backup uploaded", "key", b.Key, "size_bytes", b.SizeBytes)
	return b, nil
}

func (m *Manager) runBackup(ctx context.Context, client s3Client) (*model.Backup, error) {
	h, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load household: %w", err)
	}
	plaintext, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode household: %w", err)
	}
	sealed, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	now := m.now().UTC()
	key := keyPrefix + "backup-" + now.Format(keyTimestamp) + keySuffix
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	return &model.Backup{Key: key, SizeBytes: int64(len(sealed)), CreatedAt: now}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]model.Backup, error) {
	client, err := m.clientOrErr()
	if err != nil {
		return nil, err
	}

	var out []model.Backup
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Prefix: aws.String(keyPrefix),
	}
	for {
		page, err := client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			created, ok := parseKeyTime(key)
			if !ok {
				continue
			}
			out = append(out, model.Backup{Key: key, SizeBytes: aws.ToInt64(obj.Size), CreatedAt: created})
		}
		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func parseKeyTime(key string) (time.Time, bool) {
	name, ok := strings.CutPrefix(key, keyPrefix+"backup-")
	if !ok {
		return time.Time{}, false
	}
	name, ok = strings.CutSuffix(name, keySuffix)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(keyTimestamp, name)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Restore downloads a snapshot, decrypts it and saves it over the current
// household.
func (m *Manager) Restore(ctx context.Context, key string) error {
	client, err := m.clientOrErr()
	if err != nil {
		return err
	}
	if _, ok := parseKeyTime(key); !ok {
		return apperrors.NewInvalidRequest("not a backup key: " + key)
	}

	m.run.Lock()
	defer m.run.Unlock()

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	plaintext, err := Decrypt(sealed, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("decrypt snapshot: %w", err)
	}

	h := model.NewHousehold()
	if err := json.Unmarshal(plaintext, h); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if h.Roommates == nil {
		h.Roommates = []model.Roommate{}
	}
	if h.Chores == nil {
		h.Chores = []model.Chore{}
	}

	if err := m.store.Save(ctx, h); err != nil {
		return apperrors.NewStoreWrite(err)
	}
	m.logger.Info("backup restored", "key", key, "roommates", len(h.Roommates), "chores", len(h.Chores))
	return nil
}

// Cleanup deletes snapshots older than retentionDays and returns how many
// were removed. Individual delete failures are logged and skipped.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	client, err := m.clientOrErr()
	if err != nil {
		return 0, err
	}
	list, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().UTC().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, b := range list {
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(b.Key),
		}); err != nil {
			m.logger.Warn("failed to delete old backup", "key", b.Key, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("old backups removed", "count", removed, "retention_days", retentionDays)
	}
	return removed, nil
}
