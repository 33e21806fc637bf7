package order

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/noah-isme/bookstore/internal/common"
)

// FileLog appends order blocks to a global log and a per-buyer history file.
type FileLog struct {
	dir        string
	globalFile string
	prefix     string
}

// NewFileLog constructs a log writing globalFile and prefix<buyerID>.txt under dir.
func NewFileLog(dir, globalFile, historyPrefix string) *FileLog {
	return &FileLog{dir: dir, globalFile: globalFile, prefix: historyPrefix}
}

// HistoryPath returns the history file for a buyer id.
func (l *FileLog) HistoryPath(buyerID int) string {
	return filepath.Join(l.dir, l.prefix+strconv.Itoa(buyerID)+".txt")
}

// GlobalPath returns the global order log path.
func (l *FileLog) GlobalPath() string {
	return filepath.Join(l.dir, l.globalFile)
}

// Record appends the order to the buyer's history and to the global log. Each
// file receives the whole block in one write.
func (l *FileLog) Record(o Order) error {
	block := []byte(o.Format())
	if err := common.AppendFile(l.HistoryPath(o.Buyer.ID), block); err != nil {
		return fmt.Errorf("order history: %w", err)
	}
	if err := common.AppendFile(l.GlobalPath(), block); err != nil {
		return fmt.Errorf("order log: %w", err)
	}
	return nil
}

// History returns the buyer's order blocks, oldest first. A buyer with no
// orders yields an empty slice.
func (l *FileLog) History(buyerID int) ([]string, error) {
	f, err := os.Open(l.HistoryPath(buyerID))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open order history: %w", err)
	}
	defer f.Close()

	blocks := []string{}
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			blocks = append(blocks, cur.String())
			cur.Reset()
		}
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == blockHeader {
			flush()
		}
		if line == "" {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read order history: %w", err)
	}
	flush()
	return blocks, nil
}
