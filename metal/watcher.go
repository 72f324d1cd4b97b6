package metal

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// LibraryReloadFunc is invoked with a freshly translated replacement
// Library whenever a watched .metallib file changes on disk.
type LibraryReloadFunc func(path string, lib *Library, err error)

// LibraryWatcher watches a set of .metallib files and retranslates them
// through Device.NewLibrary whenever fsnotify reports a write or a create
// for one of them, handing
// the result to the registered LibraryReloadFunc.
type LibraryWatcher struct {
	device *Device
	watch  *fsnotify.Watcher

	mu       sync.Mutex
	handlers map[string]LibraryReloadFunc

	done chan struct{}
}

// NewLibraryWatcher opens the underlying fsnotify watcher and starts its
// event loop.
func NewLibraryWatcher(d *Device) (*LibraryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, newError("NewLibraryWatcher", KindAllocationFailed, err)
	}

	lw := &LibraryWatcher{
		device:   d,
		watch:    w,
		handlers: make(map[string]LibraryReloadFunc),
		done:     make(chan struct{}),
	}
	go lw.run()
	return lw, nil
}

// Watch begins watching path, a single .metallib file, calling onReload
// with each retranslation once the file changes.
func (lw *LibraryWatcher) Watch(path string, onReload LibraryReloadFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return newError("Watch", KindInvalidUsage, err)
	}

	lw.mu.Lock()
	lw.handlers[abs] = onReload
	lw.mu.Unlock()

	if err := lw.watch.Add(abs); err != nil {
		return newError("Watch", KindInvalidUsage, err)
	}
	return nil
}

// Unwatch stops watching path.
func (lw *LibraryWatcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return newError("Unwatch", KindInvalidUsage, err)
	}

	lw.mu.Lock()
	delete(lw.handlers, abs)
	lw.mu.Unlock()

	return lw.watch.Remove(abs)
}

func (lw *LibraryWatcher) run() {
	for {
		select {
		case e, ok := <-lw.watch.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			lw.reload(e.Name)

		case err, ok := <-lw.watch.Errors:
			if !ok {
				return
			}
			LogError("library watcher: %v", err)

		case <-lw.done:
			lw.watch.Close()
			return
		}
	}
}

func (lw *LibraryWatcher) reload(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	lw.mu.Lock()
	handler, ok := lw.handlers[abs]
	lw.mu.Unlock()
	if !ok {
		return
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		handler(abs, nil, newError("reload", KindInvalidUsage, err))
		return
	}

	lib, err := lw.device.NewLibrary(data)
	if err != nil {
		handler(abs, nil, err)
		return
	}
	LogInfo("reloaded library %s", abs)
	handler(abs, lib, nil)
}

// Close stops the watcher's event loop and releases the underlying
// fsnotify watcher.
func (lw *LibraryWatcher) Close() {
	close(lw.done)
}
