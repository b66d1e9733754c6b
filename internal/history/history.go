// Package history keeps a git trail of explicit report saves, one
// repository per report.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"qservice/api/internal/report"
)

const (
	fileName    = "report.json"
	authorName  = "Q-Service"
	authorEmail = "rapport@q-service.ch"
)

var ErrNoHistory = errors.New("no history for report")

// Entry is one recorded save.
type Entry struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Changes   []Change  `json:"changes"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Record commits r as the report's current state. A save that changes
// nothing does not produce a commit.
func (s *Service) Record(_ context.Context, r report.Report, message string) error {
	if r.ID == "" {
		return errors.New("record history: report has no id")
	}
	lock := s.reportLock(r.ID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(r.ID)
	if err != nil {
		return err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, fileName), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	if _, err := worktree.Add(fileName); err != nil {
		return fmt.Errorf("git add report: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: authorName, Email: authorEmail, When: s.now()},
	})
	if err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}

// History lists commits newest first, each with the fields it changed
// relative to its parent.
func (s *Service) History(id string, limit int) ([]Entry, error) {
	lock := s.reportLock(id)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(id)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	entries := make([]Entry, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		entry := toEntry(c)
		current, err := readReport(c)
		if err != nil {
			return err
		}
		var previous report.Report
		if parent, err := c.Parent(0); err == nil {
			if previous, err = readReport(parent); err != nil {
				return err
			}
		}
		entry.Changes = Diff(previous, current)
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return entries, nil
}

// Snapshot returns the report as it was at hash. Abbreviated hashes work.
func (s *Service) Snapshot(id, hash string) (report.Report, Entry, error) {
	lock := s.reportLock(id)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(id)
	if err != nil {
		return report.Report{}, Entry{}, err
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return report.Report{}, Entry{}, err
	}
	c, err := repo.CommitObject(resolved)
	if err != nil {
		return report.Report{}, Entry{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	r, err := readReport(c)
	if err != nil {
		return report.Report{}, Entry{}, err
	}
	return r, toEntry(c), nil
}

var unsafeDir = regexp.MustCompile(`[^\w.\-]+`)

func (s *Service) repoPath(id string) string {
	name := unsafeDir.ReplaceAllString(id, "_")
	if name == "." || name == ".." {
		name = "_"
	}
	return filepath.Join(s.baseDir, name)
}

func (s *Service) reportLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[id]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[id] = lock
	return lock
}

func (s *Service) open(id string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(id))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(id string) (*git.Repository, error) {
	repo, err := s.open(id)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, ErrNoHistory) {
		return nil, err
	}

	path := s.repoPath(id)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func readReport(c *object.Commit) (report.Report, error) {
	file, err := c.File(fileName)
	if err != nil {
		return report.Report{}, fmt.Errorf("load %s from commit: %w", fileName, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return report.Report{}, fmt.Errorf("read %s: %w", fileName, err)
	}
	var r report.Report
	if err := json.Unmarshal([]byte(contents), &r); err != nil {
		return report.Report{}, fmt.Errorf("decode commit report: %w", err)
	}
	return r, nil
}

func toEntry(c *object.Commit) Entry {
	return Entry{
		Hash:      c.Hash.String()[:7],
		Message:   c.Message,
		Author:    c.Author.Name,
		CreatedAt: c.Author.When,
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
