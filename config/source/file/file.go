package file

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-upf/upf/encoding/yaml"
	"github.com/go-upf/upf/logger"
	"github.com/go-upf/upf/pkg/routine"
)

type File struct {
	path   string
	dir    string
	notify chan struct{}
}

func NewFile(path string) *File {
	path, err := filepath.Abs(path)
	if err != nil {
		logger.Log(context.TODO(), logger.PanicLevel, map[string]interface{}{"error": err})
	}
	f := &File{
		path:   path,
		dir:    dir(path),
		notify: make(chan struct{}, 1),
	}
	routine.GoSafe(context.TODO(), func() {
		f.watch()
	})
	return f
}

func (f *File) watch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log(context.TODO(), logger.ErrorLevel, map[string]interface{}{"error": err}, "fsnotify watcher")
		return
	}
	defer w.Close()

	err = w.Add(f.dir)
	if err != nil {
		logger.Log(context.TODO(), logger.ErrorLevel, map[string]interface{}{"error": err, "dir": f.dir}, "fsnotify add")
		return
	}
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			// only care about the config file being modified/created,
			// or its real path changing (symlink swap on k8s configmaps)
			const writeOrCreateMask = fsnotify.Write | fsnotify.Create
			if event.Op&writeOrCreateMask != 0 && filepath.Clean(event.Name) == filepath.Clean(f.path) {
				logger.Log(context.TODO(), logger.InfoLevel, map[string]interface{}{"file": event.Name}, "file modify")
				select {
				case f.notify <- struct{}{}:
				default:
				}
			}
		case e, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Log(context.TODO(), logger.ErrorLevel, map[string]interface{}{"error": e}, "file watch error")
		}
	}
}

func (f *File) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f *File) Watch() <-chan struct{} {
	return f.notify
}

func (f *File) Close() error {
	close(f.notify)
	return nil
}

func (f *File) Format() string {
	return yaml.Name
}

func isDir(path string) (bool, error) {
	f, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return f.Mode().IsDir(), nil
}

func dir(path string) string {
	ok, err := isDir(path)
	if ok || err != nil {
		return path
	}
	return filepath.Dir(path)
}
