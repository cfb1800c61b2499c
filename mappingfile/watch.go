package mappingfile

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zalando/hostrouter/logging"
)

const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configure the change detection.
type WatchOptions struct {
	// Debounce is the time window in which the change events are
	// coalesced into a single reload. Defaults to DefaultDebounce.
	Debounce time.Duration

	// PollInterval, when set, enables checking the modification time
	// and the size of the file periodically, in addition to the
	// change notifications.
	PollInterval time.Duration

	// Log defaults to the application log.
	Log logging.Logger
}

// WatchClient reloads the store when the mapping file changes. Use the
// Watch function to initialize instances of it.
type WatchClient struct {
	store    *Store
	options  WatchOptions
	fileName string
	watcher  *fsnotify.Watcher
	log      logging.Logger
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

func statFile(name string) fileState {
	fi, err := os.Stat(name)
	if err != nil {
		return fileState{}
	}

	return fileState{exists: true, modTime: fi.ModTime(), size: fi.Size()}
}

func (s fileState) changed(next fileState) bool {
	return s.exists != next.exists || s.size != next.size || !s.modTime.Equal(next.modTime)
}

// Watch starts watching the store's mapping file. It watches the
// containing directory, so replacing the file by renaming another one
// over it is detected, too. It does not load the file initially.
func Watch(s *Store, o WatchOptions) (*WatchClient, error) {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}

	if o.Log == nil {
		o.Log = s.log
	}

	fileName, err := filepath.Abs(s.options.FileName)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(filepath.Dir(fileName)); err != nil {
		w.Close()
		return nil, err
	}

	c := &WatchClient{
		store:    s,
		options:  o,
		fileName: fileName,
		watcher:  w,
		log:      o.Log,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go c.watch()
	return c, nil
}

func (c *WatchClient) relevant(e fsnotify.Event) bool {
	if filepath.Clean(e.Name) != c.fileName {
		return false
	}

	return e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0
}

func (c *WatchClient) watch() {
	defer close(c.done)

	debounce := time.NewTimer(c.options.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	var (
		poll  <-chan time.Time
		state fileState
	)

	if c.options.PollInterval > 0 {
		t := time.NewTicker(c.options.PollInterval)
		defer t.Stop()
		poll = t.C
		state = statFile(c.fileName)
	}

	for {
		select {
		case e, ok := <-c.watcher.Events:
			if !ok {
				return
			}

			if c.relevant(e) {
				c.log.Debugf("mapping file event: %v", e)
				debounce.Reset(c.options.Debounce)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}

			c.log.Errorf("error while watching mapping file %s: %v", c.fileName, err)
		case <-debounce.C:
			state = statFile(c.fileName)
			c.store.Load()
		case <-poll:
			if next := statFile(c.fileName); state.changed(next) {
				state = next
				c.store.Load()
			}
		case <-c.quit:
			return
		}
	}
}

// Close stops watching the mapping file. It can be called multiple
// times.
func (c *WatchClient) Close() {
	c.once.Do(func() {
		close(c.quit)
		<-c.done
		c.watcher.Close()
	})
}
