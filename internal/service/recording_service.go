package service

import (
	"activity_engine/internal/config"
	"activity_engine/internal/engine"
	"activity_engine/internal/util"
	"activity_engine/pkg/logger"
	"activity_engine/pkg/tracing"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RecordingUpload 一次口语录音上传
type RecordingUpload struct {
	Filename        string
	Size            int64
	Body            io.Reader
	DeclaredSeconds float64
}

type RecordingService struct {
	Sessions *SessionService
	Storage  StorageProvider
	Cfg      config.RecordingConfig
	now      func() time.Time
}

func NewRecordingService(sessions *SessionService, storage StorageProvider, cfg config.RecordingConfig) *RecordingService {
	return &RecordingService{Sessions: sessions, Storage: storage, Cfg: cfg, now: time.Now}
}

// Upload 校验并保存录音，然后标记到会话上。标记失败时删除已上传的对象
func (s *RecordingService) Upload(ctx context.Context, learnerID, sessionID string, up RecordingUpload) (snap engine.Snapshot, err error) {
	ctx, span := tracing.StartSpan(ctx, "recording.upload",
		attribute.String("session.id", sessionID),
		attribute.Int64("recording.size", up.Size))
	defer func() { tracing.End(span, err) }()

	activity, status, err := s.Sessions.Activity(learnerID, sessionID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	sp, ok := activity.Content.(*engine.SpeakingContent)
	if !ok {
		return engine.Snapshot{}, fmt.Errorf("%w: %s activity takes no recording", engine.ErrInvalidAnswer, activity.Kind())
	}
	if status != engine.InProgress {
		return engine.Snapshot{}, &engine.TransitionError{Op: "mark recorded", State: status}
	}

	if s.Cfg.MaxUploadBytes > 0 && up.Size > s.Cfg.MaxUploadBytes {
		return engine.Snapshot{}, util.ErrRecordingTooLarge
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !util.HasAllowedExtension(up.Filename, util.AllowedRecordingExtensions) {
		return engine.Snapshot{}, fmt.Errorf("%w: extension %q", util.ErrUnsupportedMedia, ext)
	}

	tmp, err := s.spool(up.Body)
	if err != nil {
		return engine.Snapshot{}, err
	}
	defer os.Remove(tmp)

	mimeType, err := sniff(tmp)
	if err != nil {
		return engine.Snapshot{}, err
	}

	duration := up.DeclaredSeconds
	if s.Cfg.Probe {
		info, err := util.GetMediaInfo(tmp)
		if err != nil {
			return engine.Snapshot{}, err
		}
		duration = info.Duration
	}
	span.SetAttributes(attribute.Float64("recording.seconds", duration))
	if sp.MaxRecordingSeconds > 0 && duration <= 0 {
		return engine.Snapshot{}, fmt.Errorf("%w: recording duration unknown, cap is %ds", engine.ErrInvalidAnswer, sp.MaxRecordingSeconds)
	}
	if sp.MaxRecordingSeconds > 0 && duration > float64(sp.MaxRecordingSeconds) {
		return engine.Snapshot{}, fmt.Errorf("%w: recording is %.1fs, cap is %ds", engine.ErrInvalidAnswer, duration, sp.MaxRecordingSeconds)
	}

	key := RecordingKey(learnerID, sessionID, ext, s.now())
	url, err := s.Storage.PutFile(ctx, key, tmp, mimeType)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("store recording: %w", err)
	}

	snap, err = s.Sessions.MarkRecorded(learnerID, sessionID, url, duration)
	if err != nil {
		if delErr := s.Storage.Delete(ctx, key); delErr != nil {
			logger.Log.Warn("Failed to delete orphaned recording", zap.String("key", key), zap.Error(delErr))
		}
		return engine.Snapshot{}, err
	}
	logger.Log.Info("Recording stored",
		zap.String("sessionId", sessionID),
		zap.String("key", key),
		zap.Float64("seconds", duration))
	return snap, nil
}

// spool 写入临时文件，超过上限时报错
func (s *RecordingService) spool(body io.Reader) (string, error) {
	f, err := os.CreateTemp("", "recording-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := body
	if s.Cfg.MaxUploadBytes > 0 {
		r = io.LimitReader(body, s.Cfg.MaxUploadBytes+1)
	}
	n, err := io.Copy(f, r)
	if err == nil && s.Cfg.MaxUploadBytes > 0 && n > s.Cfg.MaxUploadBytes {
		err = util.ErrRecordingTooLarge
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: empty file", util.ErrUnsupportedMedia)
	}
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	mimeType, err := util.ValidateMimeType(f, util.AllowedRecordingMimes)
	if err != nil {
		return "", fmt.Errorf("%w: %s", util.ErrUnsupportedMedia, mimeType)
	}
	return mimeType, nil
}
