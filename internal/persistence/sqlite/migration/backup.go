package migration

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/crypto/blake2b"
)

const (
	preMigrationInfix = "-premigration-"
	routineSuffix     = ".routine.db.br"
	digestSuffix      = ".b2sum"
	backupTimeLayout  = "20060102T150405.000000000Z"
)

// FileBackup copies the database file into a backup directory.
//
// A pre-migration backup is a new plain copy named after the current time; the
// newest Retain copies are kept. A routine backup overwrites a single
// brotli-compressed copy. Every backup gets a sidecar file holding the
// blake2b-256 digest of the uncompressed database bytes.
type FileBackup struct {
	Source string
	Dir    string
	Retain int
	Now    func() time.Time
	Logger *slog.Logger
}

// NewFileBackup returns a FileBackup of source into dir keeping retain
// pre-migration copies.
func NewFileBackup(source, dir string, retain int, logger *slog.Logger) *FileBackup {
	if logger == nil {
		logger = slog.Default()
	}
	if retain < 1 {
		retain = 1
	}
	return &FileBackup{Source: source, Dir: dir, Retain: retain, Now: time.Now, Logger: logger}
}

// Backup implements BackupManager. A missing source file is not an error:
// there is nothing to protect yet.
func (b *FileBackup) Backup(ctx context.Context, preMigration bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(b.Source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			b.Logger.Debug("no database file to back up", "source", b.Source)
			return nil
		}
		return newError(KindIO, "stat database file", err)
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return newError(KindIO, "create backup dir", err)
	}

	base := strings.TrimSuffix(filepath.Base(b.Source), filepath.Ext(b.Source))
	var (
		dst string
		err error
	)
	if preMigration {
		dst = filepath.Join(b.Dir, base+preMigrationInfix+b.Now().UTC().Format(backupTimeLayout)+".db")
		err = b.copy(dst, false)
	} else {
		dst = filepath.Join(b.Dir, base+routineSuffix)
		err = b.copy(dst, true)
	}
	if err != nil {
		return newError(KindIO, fmt.Sprintf("back up %s to %s", b.Source, dst), err)
	}
	b.Logger.Info("database backed up", "destination", dst, "pre_migration", preMigration)

	if preMigration {
		if err := b.prune(base); err != nil {
			b.Logger.Warn("failed to prune old backups", "dir", b.Dir, "error", err)
		}
	}
	return nil
}

// copy writes the source into dst through a temp file and an atomic rename.
func (b *FileBackup) copy(dst string, compress bool) (err error) {
	src, err := os.Open(b.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(b.Dir, ".backup-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	digest, _ := blake2b.New256(nil)
	var out io.Writer = tmp
	var bw *brotli.Writer
	if compress {
		bw = brotli.NewWriterLevel(tmp, brotli.DefaultCompression)
		out = bw
	}
	if _, err = io.Copy(io.MultiWriter(out, digest), src); err != nil {
		return err
	}
	if bw != nil {
		if err = bw.Close(); err != nil {
			return err
		}
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return err
	}

	sum := hex.EncodeToString(digest.Sum(nil)) + "  " + filepath.Base(b.Source) + "\n"
	return os.WriteFile(dst+digestSuffix, []byte(sum), 0o644)
}

// prune removes the oldest pre-migration copies beyond Retain.
func (b *FileBackup) prune(base string) error {
	matches, err := filepath.Glob(filepath.Join(b.Dir, base+preMigrationInfix+"*.db"))
	if err != nil {
		return err
	}
	if len(matches) <= b.Retain {
		return nil
	}
	sort.Strings(matches)
	var errs []error
	for _, old := range matches[:len(matches)-b.Retain] {
		if err := os.Remove(old); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(old + digestSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		b.Logger.Debug("pruned backup", "path", old)
	}
	return errors.Join(errs...)
}
