package migration

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

const (
	commentDelimiter   = "--"
	statementDelimiter = ";"
	maxLineLength      = 16 << 20
)

// ParseStatements reads a script line by line and calls fn with every complete
// statement, in order, as soon as its terminator is read.
//
// Lines starting with "--" are dropped and anything after the first "--" on
// other lines is stripped. The remaining fragments are joined with a space
// until the buffer ends with ";", then the statement is emitted with runs of
// whitespace collapsed to a single space. Text inside string literals gets the
// same treatment, so scripts must not rely on "--" or repeated blanks there.
//
// An error from fn stops parsing and is returned unchanged.
func ParseStatements(r io.Reader, fn func(stmt string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var buf strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, commentDelimiter) {
			continue
		}
		if idx := strings.Index(line, commentDelimiter); idx >= 0 {
			line = line[:idx]
		}

		buf.WriteString(" ")
		buf.WriteString(line)

		if !strings.HasSuffix(strings.TrimRightFunc(buf.String(), unicode.IsSpace), statementDelimiter) {
			continue
		}
		stmt := normalize(buf.String())
		buf.Reset()
		if err := fn(stmt); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return newError(KindIO, "read script", err)
	}
	if rest := normalize(buf.String()); rest != "" {
		return newError(KindSQL, fmt.Sprintf("unterminated statement %q", rest), nil)
	}
	return nil
}

// SplitStatements parses text and returns every statement it contains.
func SplitStatements(text string) ([]string, error) {
	var out []string
	err := ParseStatements(strings.NewReader(text), func(stmt string) error {
		out = append(out, stmt)
		return nil
	})
	return out, err
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// executeScript runs every statement of script, each in its own transaction on
// a private connection. The handle is closed for the duration and reopened on
// every exit path, so callers can still read committed state after a failure.
func executeScript(ctx context.Context, h *Handle, script Script, logger *slog.Logger) (err error) {
	ver := script.Version.String()
	logger = logger.With("version", ver, "script", script.Name)
	logger.Info("executing script")
	start := time.Now()

	if err := h.Close(); err != nil {
		return &Error{Kind: KindSQL, Context: "close connection", Version: ver, Script: script.Name, Err: err}
	}
	defer func() {
		if openErr := h.Open(ctx); openErr != nil {
			reopen := &Error{Kind: KindSQL, Context: "reopen connection", Version: ver, Script: script.Name, Err: openErr}
			if err == nil {
				err = reopen
			} else {
				err = errors.Join(err, reopen)
			}
		}
	}()

	rc, err := script.Open()
	if err != nil {
		return &Error{Kind: KindIO, Context: "open script", Version: ver, Script: script.Name, Err: err}
	}
	defer rc.Close()

	digest, _ := blake2b.New256(nil)
	count, committed := 0, 0
	err = ParseStatements(io.TeeReader(rc, digest), func(stmt string) error {
		count++
		logger.Debug("executing statement", "index", count, "statement", stmt)
		if err := execStatement(ctx, h, stmt); err != nil {
			return &Error{Kind: KindSQL, Context: fmt.Sprintf("statement %d", count), Err: err}
		}
		committed++
		return nil
	})
	if err != nil {
		err = annotate(err, ver, script.Name)
		logger.Error("script execution failed", "statements_committed", committed, "error", err)
		return err
	}

	logger.Debug("script executed",
		"statements", committed,
		"digest", hex.EncodeToString(digest.Sum(nil)),
		"duration", time.Since(start))
	return nil
}

// execStatement commits a single statement on a fresh connection.
func execStatement(ctx context.Context, h *Handle, stmt string) error {
	if err := h.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	db, err := h.connect(ctx)
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
