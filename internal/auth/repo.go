package auth

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/crack2116/fleettrack/internal/cache"
)

const checkTTL = time.Minute

// FileRepository keeps users from a yaml file and reloads it on change.
type FileRepository struct {
	userFile string
	logger   *slog.Logger
	users    map[string]*User
	verified *cache.Cache[string, [sha256.Size]byte]
	watcher  *fsnotify.Watcher

	mx sync.RWMutex
}

func NewFileRepo(userFile string) *FileRepository {
	r := &FileRepository{
		logger:   slog.Default().With("logger", "users"),
		userFile: userFile,
		users:    make(map[string]*User),
		verified: cache.NewWithTTL[string, [sha256.Size]byte](checkTTL, nil),
	}

	if err := r.load(); err != nil {
		r.logger.Error("error loading users file", slog.Any("error", err))
	}

	if r.Len() == 0 {
		r.logger.Warn("no valid users found, adding dispatcher/dispatcher")

		u := &User{Login: "dispatcher"}
		_ = u.SetPassword("dispatcher")

		r.mx.Lock()
		r.users[u.Login] = u
		r.mx.Unlock()
	}

	return r
}

func (r *FileRepository) load() error {
	if r.userFile == "" {
		return nil
	}

	if _, err := os.Lstat(r.userFile); os.IsNotExist(err) {
		f, err := os.Create(r.userFile)
		if err != nil {
			return err
		}

		return f.Close()
	}

	dat, err := os.ReadFile(r.userFile)
	if err != nil {
		return err
	}

	var list []*User

	if err := yaml.Unmarshal(dat, &list); err != nil {
		return err
	}

	users := make(map[string]*User, len(list))

	for _, u := range list {
		if u != nil && u.Login != "" {
			users[u.Login] = u
		}
	}

	r.mx.Lock()
	r.users = users
	r.mx.Unlock()

	r.verified.Purge()
	r.logger.Info("users loaded", slog.Int("count", len(users)))

	return nil
}

// Start watches the directory of the users file, editors often replace the file.
func (r *FileRepository) Start() error {
	if r.userFile == "" {
		return nil
	}

	var err error

	if r.watcher, err = fsnotify.NewWatcher(); err != nil {
		return err
	}

	if err := r.watcher.Add(filepath.Dir(r.userFile)); err != nil {
		return err
	}

	name := filepath.Clean(r.userFile)

	go func() {
		for {
			select {
			case event, ok := <-r.watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != name || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}

				r.logger.Info("users file is modified, reloading")

				if err := r.load(); err != nil {
					r.logger.Error("reload error", slog.Any("error", err))
				}
			case err, ok := <-r.watcher.Errors:
				if !ok {
					return
				}

				r.logger.Error("watcher error", slog.Any("error", err))
			}
		}
	}()

	return nil
}

func (r *FileRepository) Stop() {
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
}

// CheckAuth verifies login and password. A successful check is remembered per
// login for a minute or until the file is reloaded.
func (r *FileRepository) CheckAuth(login, password string) bool {
	r.mx.RLock()
	u, ok := r.users[login]
	r.mx.RUnlock()

	if !ok || u.Disabled {
		return false
	}

	hash := sha256.Sum256([]byte(password))

	if h, ok := r.verified.Get(login); ok && h == hash {
		return true
	}

	if !u.CheckPassword(password) {
		return false
	}

	r.verified.Store(login, hash)

	return true
}

func (r *FileRepository) Get(login string) *User {
	r.mx.RLock()
	defer r.mx.RUnlock()

	if u, ok := r.users[login]; ok {
		c := *u
		return &c
	}

	return nil
}

func (r *FileRepository) Logins() []string {
	r.mx.RLock()
	defer r.mx.RUnlock()

	res := make([]string, 0, len(r.users))
	for l := range r.users {
		res = append(res, l)
	}

	sort.Strings(res)

	return res
}

func (r *FileRepository) Len() int {
	r.mx.RLock()
	defer r.mx.RUnlock()

	return len(r.users)
}
