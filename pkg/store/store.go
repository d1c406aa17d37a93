package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/util"
)

// Short commit identifier length, matching the original git-derived hashes.
const idLength = 7

const maxIDAttempts = 8

// DefaultHistoryLimit bounds unfiltered history queries.
const DefaultHistoryLimit = 50

// FileStore is a filesystem-backed audit store. Layout:
//
//	<root>/journal.log                    all records in commit order (JSONL)
//	<root>/devices/<device>/<iface>.log   per-segment records (JSONL)
//
// The journal defines global history order; segments give O(segment)
// parent/current lookups. Writers serialize per (device, interface) key,
// so commits to the same port are strictly ordered by arrival while
// different ports proceed in parallel.
type FileStore struct {
	root string

	mu       sync.Mutex        // guards ids, heads, keyLocks
	ids      map[string]string // commit id -> segment path
	heads    map[string]string // segment key -> latest commit id
	keyLocks map[string]*sync.Mutex

	journalMu sync.Mutex
	seq       atomic.Uint64

	now func() time.Time
}

// Open loads (or initializes) a store rooted at dir.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "devices"), 0755); err != nil {
		return nil, fmt.Errorf("creating store root: %w", util.ErrStoreCorruption)
	}

	s := &FileStore{
		root:     dir,
		ids:      make(map[string]string),
		heads:    make(map[string]string),
		keyLocks: make(map[string]*sync.Mutex),
		now:      time.Now,
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadIndex streams the journal once to rebuild the id index and segment
// heads. Malformed lines are skipped with a warning; an unreadable journal
// is corruption.
func (s *FileStore) loadIndex() error {
	f, err := os.Open(s.journalPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening journal: %v: %w", err, util.ErrStoreCorruption)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			util.Warnf("store: skipping malformed journal entry at line %d: %v", line, err)
			continue
		}
		s.ids[rec.ID] = s.segmentPath(rec.Device, rec.Interface)
		s.heads[segmentKey(rec.Device, rec.Interface)] = rec.ID
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading journal: %v: %w", err, util.ErrStoreCorruption)
	}
	return nil
}

// Commit appends a new record for the artifact and returns its identifier.
// Identifiers are content-derived and unique even for byte-identical repeat
// commits: the timestamp and a store-wide sequence number are part of the
// digest.
func (s *FileStore) Commit(device, iface string, artifact *change.Artifact, author string) (string, error) {
	rec, err := s.append(device, iface, artifact.Commands, artifact.Text(), author,
		OpConfigure, "", fmt.Sprintf("Configure %s %s", device, iface))
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Rollback creates a new record whose configuration equals the target
// commit's, making it the current state for that segment. Prior records are
// untouched. Fails with ErrNotFound for unknown commit ids.
func (s *FileStore) Rollback(commitID, author string) (*Record, error) {
	target, err := s.Get(commitID)
	if err != nil {
		return nil, err
	}
	return s.append(target.Device, target.Interface, target.Commands, target.ConfigText, author,
		OpRollback, commitID,
		fmt.Sprintf("Rollback %s %s to %s", target.Device, target.Interface, commitID))
}

// Get returns the full record for a commit id, or ErrNotFound.
func (s *FileStore) Get(commitID string) (*Record, error) {
	s.mu.Lock()
	segment, ok := s.ids[commitID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("commit %q: %w", commitID, util.ErrNotFound)
	}

	var found *Record
	err := scanRecords(segment, func(rec *Record) {
		if rec.ID == commitID {
			found = rec
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("commit %q missing from segment: %w", commitID, util.ErrStoreCorruption)
	}
	return found, nil
}

// Current returns the latest record for a (device, interface) segment, or
// ErrNotFound when the segment has no commits.
func (s *FileStore) Current(device, iface string) (*Record, error) {
	s.mu.Lock()
	head := s.heads[segmentKey(device, iface)]
	s.mu.Unlock()
	if head == "" {
		return nil, fmt.Errorf("%s %s has no commits: %w", device, iface, util.ErrNotFound)
	}
	return s.Get(head)
}

// History returns commit summaries most-recent-first, optionally filtered by
// device. limit bounds the result (DefaultHistoryLimit when <= 0). The
// journal is streamed line by line; memory use is bounded by limit, not by
// history length.
func (s *FileStore) History(device string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	// No lock: journal lines are appended with a single O_APPEND write, so a
	// concurrent reader sees whole records (a torn trailing line parses as
	// malformed and is skipped, never surfaced).
	window := make([]Summary, 0, limit)
	err := scanRecords(s.journalPath(), func(rec *Record) {
		if device != "" && rec.Device != device {
			return
		}
		if len(window) == limit {
			copy(window, window[1:])
			window = window[:limit-1]
		}
		window = append(window, rec.summary())
	})
	if err != nil {
		return nil, err
	}

	// journal order is oldest-first; reverse for most-recent-first
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window, nil
}

// append serializes per segment key, assigns an id, and writes the record to
// the segment file and the journal.
func (s *FileStore) append(device, iface string, commands []string, text, author, op, rollbackOf, message string) (*Record, error) {
	key := segmentKey(device, iface)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	parent := s.heads[key]
	s.mu.Unlock()

	rec := &Record{
		Device:     device,
		Interface:  iface,
		Commands:   commands,
		ConfigText: text,
		Author:     author,
		Message:    message,
		Timestamp:  s.now(),
		Parent:     parent,
		Operation:  op,
		RollbackOf: rollbackOf,
	}

	segment := s.segmentPath(device, iface)
	if err := s.assignID(rec, segment); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(segment), 0755); err != nil {
		return nil, fmt.Errorf("creating segment dir: %v: %w", err, util.ErrStoreCorruption)
	}
	if err := appendJSON(segment, rec); err != nil {
		return nil, err
	}

	s.journalMu.Lock()
	err := appendJSON(s.journalPath(), rec)
	s.journalMu.Unlock()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.heads[key] = rec.ID
	s.mu.Unlock()

	util.WithDevice(device).Infof("committed %s for %s (%s)", rec.ID, iface, op)
	return rec, nil
}

// assignID derives a short content hash, retrying with a disambiguating
// suffix on the vanishingly rare collision.
func (s *FileStore) assignID(rec *Record, segment string) error {
	salt := ""
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		seq := s.seq.Add(1)
		h := sha256.New()
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%d\x00%d\x00%s",
			rec.Device, rec.Interface, rec.Author, rec.ConfigText,
			rec.Timestamp.UnixNano(), seq, salt)
		id := hex.EncodeToString(h.Sum(nil))[:idLength]

		s.mu.Lock()
		if _, taken := s.ids[id]; !taken {
			s.ids[id] = segment
			s.mu.Unlock()
			rec.ID = id
			return nil
		}
		s.mu.Unlock()
		salt = uuid.NewString()
	}
	return fmt.Errorf("could not derive unique commit id after %d attempts", maxIDAttempts)
}

func (s *FileStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[key] = lock
	}
	return lock
}

func (s *FileStore) journalPath() string {
	return filepath.Join(s.root, "journal.log")
}

func (s *FileStore) segmentPath(device, iface string) string {
	return filepath.Join(s.root, "devices", device, util.SanitizeInterfaceName(iface)+".log")
}

func segmentKey(device, iface string) string {
	return device + "|" + iface
}

// scanRecords streams a JSONL file, invoking fn per parsed record. Missing
// files yield no records; unreadable files are corruption.
func scanRecords(path string, fn func(*Record)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening %s: %v: %w", filepath.Base(path), err, util.ErrStoreCorruption)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			util.Warnf("store: skipping malformed entry at %s:%d: %v", filepath.Base(path), line, err)
			continue
		}
		fn(&rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %v: %w", filepath.Base(path), err, util.ErrStoreCorruption)
	}
	return nil
}

func appendJSON(path string, rec *Record) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %v: %w", filepath.Base(path), err, util.ErrStoreCorruption)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("writing %s: %v: %w", filepath.Base(path), err, util.ErrStoreCorruption)
	}
	return nil
}
