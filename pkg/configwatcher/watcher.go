package configwatcher

import (
	"activity_engine/internal/config"
	"activity_engine/pkg/logger"
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type Loader func(dir string) (*config.Config, error)

type Reloader func(cfg *config.Config)

// Watcher 监听配置文件写入，防抖后重新加载
type Watcher struct {
	Path     string
	Load     Loader
	Reload   Reloader
	Debounce time.Duration
}

func New(path string, reload Reloader) *Watcher {
	return &Watcher{
		Path:     path,
		Load:     config.LoadConfig,
		Reload:   reload,
		Debounce: time.Second,
	}
}

// Run 阻塞直到 ctx 取消。监听所在目录，以兼容编辑器的 rename 式保存
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(w.Path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.Debounce)
			}
		case <-timer.C:
			newCfg, err := w.Load(dir)
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded", zap.String("path", absPath))
			w.Reload(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
