// Package catalog loads the list of installed games from a JSON file and keeps
// it current while the server runs.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrInvalidEntry = errors.New("invalid catalog entry")

// ServerSpec describes how to start a game's server. Command is an argv whose
// elements may contain the placeholders {host}, {port}, {room_id}, {match_id}
// and {players}.
type ServerSpec struct {
	Command []string          `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
}

// Game is one catalog entry. Rooms copy the entry when they are created so a
// reload never changes a room that already exists.
type Game struct {
	ID          int        `json:"game_id"`
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Developer   string     `json:"developer,omitempty"`
	Description string     `json:"description,omitempty"`
	Path        string     `json:"path"`
	PlayersMin  int        `json:"players_min"`
	PlayersMax  int        `json:"players_max"`
	Server      ServerSpec `json:"server"`
}

// DisplayName is the name shown to players.
func (g Game) DisplayName() string {
	return cases.Title(language.English, cases.NoLower).String(g.Name)
}

func (g Game) validate() error {
	switch {
	case g.ID <= 0:
		return fmt.Errorf("%w: game_id must be positive", ErrInvalidEntry)
	case g.Name == "":
		return fmt.Errorf("%w: game %d has no name", ErrInvalidEntry, g.ID)
	case g.PlayersMin < 1 || g.PlayersMax < g.PlayersMin:
		return fmt.Errorf("%w: game %d has player range %d-%d", ErrInvalidEntry, g.ID, g.PlayersMin, g.PlayersMax)
	}
	return nil
}

type catalogFile struct {
	Games []Game `json:"games"`
}

// Parse decodes and validates a catalog document.
func Parse(contents []byte) (map[int]Game, error) {
	var f catalogFile
	if err := json.Unmarshal(contents, &f); err != nil {
		return nil, fmt.Errorf("error parsing catalog: %w", err)
	}

	games := make(map[int]Game, len(f.Games))
	for _, g := range f.Games {
		if err := g.validate(); err != nil {
			return nil, err
		}
		if _, dup := games[g.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate game_id %d", ErrInvalidEntry, g.ID)
		}
		games[g.ID] = g
	}
	return games, nil
}

// Catalog is safe for concurrent use.
type Catalog struct {
	path   string
	logger *logrus.Logger

	mu    sync.RWMutex
	games map[int]Game
}

// Load reads the catalog at path.
func Load(path string, logger *logrus.Logger) (*Catalog, error) {
	c := &Catalog{path: path, logger: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// New returns a fixed catalog containing games.
func New(games ...Game) *Catalog {
	c := &Catalog{games: make(map[int]Game, len(games))}
	for _, g := range games {
		c.games[g.ID] = g
	}
	return c
}

// Get returns the entry for id.
func (c *Catalog) Get(id int) (Game, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.games[id]
	return g, ok
}

// List returns every entry ordered by id.
func (c *Catalog) List() []Game {
	c.mu.RLock()
	defer c.mu.RUnlock()

	games := make([]Game, 0, len(c.games))
	for _, g := range c.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games
}

// Reload re-reads the catalog file. The current entries are kept if the file
// can't be read or is invalid.
func (c *Catalog) Reload() error {
	contents, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("error reading catalog %s: %w", c.path, err)
	}
	games, err := Parse(contents)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.games = games
	c.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever its file is written or replaced until ctx
// is cancelled. The directory is watched rather than the file so that editors
// which save by renaming are picked up.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating catalog watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("error watching %s: %w", c.path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := c.Reload(); err != nil {
					c.logger.Warnf("catalog reload failed, keeping previous entries: %v", err)
					continue
				}
				c.logger.Infof("reloaded game catalog (%d games)", len(c.List()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Errorf("catalog watcher error: %v", err)
			}
		}
	}()
	return nil
}
