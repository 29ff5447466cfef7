package filemonitor

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/satkernel/pkg/config"
)

// ApplyFn receives the parameters read from a watched file. A
// returned error is logged and the file is read again on its next
// change.
type ApplyFn func(config.Params) error

type paramsFile struct {
	path  string
	apply ApplyFn
}

// HandleFilesystemUpdate is intended to be used as the OnUpdateFn for a
// watcher on the directory containing the parameters file. Editors and
// config mounts usually replace the file rather than write it, so
// creations count as updates.
func (p *paramsFile) HandleFilesystemUpdate(logger logrus.FieldLogger, event fsnotify.Event) {
	if filepath.Clean(event.Name) != p.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	logger = logger.WithField("path", p.path)
	params, err := config.ReadFile(p.path)
	if err != nil {
		logger.WithError(err).Warn("parameters not reloaded")
		return
	}
	if err := p.apply(params); err != nil {
		logger.WithError(err).Warn("parameters rejected")
		return
	}
	logger.Info("parameters reloaded")
}

// WatchParams applies the parameters in path every time the file
// changes, until ctx is done. The file is not read up front.
func WatchParams(ctx context.Context, logger logrus.FieldLogger, path string, apply ApplyFn) (<-chan struct{}, error) {
	p := &paramsFile{path: filepath.Clean(path), apply: apply}
	w, err := NewWatch(logger, []string{filepath.Dir(p.path)}, p.HandleFilesystemUpdate)
	if err != nil {
		return nil, err
	}
	return w.Run(ctx), nil
}
