package registry

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/distfs/internal/atomicfile"
)

// Store persists the file registry to a flat text file
// (data/file_registry.txt), one `|`-separated line per file, per the
// persisted layout in the external interfaces section.
type Store struct {
	path string
}

// NewStore returns a Store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

const registryFieldCount = 9

// Save rewrites the registry file from scratch with one line per record,
// using the atomic create-temp-and-rename protocol.
func (s *Store) Save(records []FileRecord) error {
	var b strings.Builder
	for _, fr := range records {
		b.WriteString(encodeFileRecord(fr))
		b.WriteByte('\n')
	}
	return atomicfile.Write(s.path, []byte(b.String()), 0o644)
}

// Replay reads the registry file (if it exists) and returns the
// FileRecords it contains, for repopulating the in-memory registry on
// coordinator startup.
func (s *Store) Replay() ([]FileRecord, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", s.path, err)
	}
	defer f.Close()

	var records []FileRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fr, err := decodeFileRecord(line)
		if err != nil {
			return nil, fmt.Errorf("registry: malformed line %q: %w", line, err)
		}
		records = append(records, fr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("registry: scan %s: %w", s.path, err)
	}
	return records, nil
}

func encodeFileRecord(fr FileRecord) string {
	fields := []string{
		fr.Filename,
		fr.Owner,
		fr.NodeID,
		strconv.FormatInt(fr.Created.Unix(), 10),
		strconv.FormatInt(fr.Modified.Unix(), 10),
		strconv.FormatInt(fr.Accessed.Unix(), 10),
		fr.LastAccessor,
		strconv.Itoa(fr.WordCount),
		strconv.Itoa(fr.CharCount),
	}
	return strings.Join(fields, "|")
}

func decodeFileRecord(line string) (FileRecord, error) {
	fields := strings.Split(line, "|")
	if len(fields) != registryFieldCount {
		return FileRecord{}, fmt.Errorf("expected %d fields, got %d", registryFieldCount, len(fields))
	}

	created, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return FileRecord{}, fmt.Errorf("created: %w", err)
	}
	modified, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return FileRecord{}, fmt.Errorf("modified: %w", err)
	}
	accessed, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return FileRecord{}, fmt.Errorf("accessed: %w", err)
	}
	wordCount, err := strconv.Atoi(fields[7])
	if err != nil {
		return FileRecord{}, fmt.Errorf("word_count: %w", err)
	}
	charCount, err := strconv.Atoi(fields[8])
	if err != nil {
		return FileRecord{}, fmt.Errorf("char_count: %w", err)
	}

	return FileRecord{
		Filename:     fields[0],
		Owner:        fields[1],
		NodeID:       fields[2],
		Created:      time.Unix(created, 0),
		Modified:     time.Unix(modified, 0),
		Accessed:     time.Unix(accessed, 0),
		LastAccessor: fields[6],
		WordCount:    wordCount,
		CharCount:    charCount,
	}, nil
}
