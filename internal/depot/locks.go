package depot

import (
	"sort"
	"sync"
)

// lockTable serializes mutating operations per repository. A repository
// operation holds its owner's lock shared and the repository's lock
// exclusively; a user-level operation holds the owner's lock exclusively,
// which excludes every repository operation of that owner.
//
// Entries are never evicted; the table grows with the number of distinct
// repositories touched by the process.
type lockTable struct {
	mu    sync.Mutex
	users map[string]*sync.RWMutex
	repos map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{
		users: make(map[string]*sync.RWMutex),
		repos: make(map[string]*sync.Mutex),
	}
}

func (t *lockTable) user(owner string) *sync.RWMutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.users[owner]
	if !ok {
		l = &sync.RWMutex{}
		t.users[owner] = l
	}
	return l
}

func (t *lockTable) repo(owner, repo string) *sync.Mutex {
	key := repoIdent(owner, repo)
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.repos[key]
	if !ok {
		l = &sync.Mutex{}
		t.repos[key] = l
	}
	return l
}

// lockRepos locks one or more repositories of the same owner. Repositories
// are locked in sorted order so two callers locking the same pair cannot deadlock.
func (t *lockTable) lockRepos(owner string, repos ...string) (unlock func()) {
	names := append([]string(nil), repos...)
	sort.Strings(names)
	names = dedupSorted(names)

	u := t.user(owner)
	u.RLock()

	held := make([]*sync.Mutex, 0, len(names))
	for _, name := range names {
		l := t.repo(owner, name)
		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
		u.RUnlock()
	}
}

// lockUsers exclusively locks one or more owners, in sorted order.
func (t *lockTable) lockUsers(owners ...string) (unlock func()) {
	names := append([]string(nil), owners...)
	sort.Strings(names)
	names = dedupSorted(names)

	held := make([]*sync.RWMutex, 0, len(names))
	for _, name := range names {
		l := t.user(name)
		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func dedupSorted(names []string) []string {
	out := names[:0]
	for i, n := range names {
		if i > 0 && n == names[i-1] {
			continue
		}
		out = append(out, n)
	}
	return out
}
