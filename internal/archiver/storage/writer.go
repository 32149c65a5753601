// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage durably writes bytes under a storage root with
// traversal and symlink safety, and performs the group commit of an
// archive's PDF, sidecar, and attachment files.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"ticketarchiver/internal/archiver/pathpolicy"
)

const fileMode = 0o640

// Writer performs traversal-safe, symlink-safe filesystem writes rooted
// at Root.
type Writer struct {
	Root  string
	Fsync bool
}

func New(root string, fsync bool) *Writer {
	return &Writer{Root: root, Fsync: fsync}
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

func fsyncDirBestEffort(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}

// rejectSymlinksUnderRoot walks each component of dir (relative to root)
// and fails if any is a symlink. Best-effort: a TOCTOU race between this
// check and the write is possible, matching the teacher's documented
// tradeoff.
func rejectSymlinksUnderRoot(root, dir string) error {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("storage: resolve root: %w", err)
	}
	dirAbs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("storage: resolve target dir: %w", err)
	}
	if err := pathpolicy.EnsureWithinRoot(rootAbs, dirAbs); err != nil {
		return err
	}
	rel, err := filepath.Rel(rootAbs, dirAbs)
	if err != nil {
		return fmt.Errorf("storage: target path escapes root: %w", err)
	}
	if rel == "." {
		return nil
	}

	current := rootAbs
	for _, part := range splitPath(rel) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("storage: target path validation failed (unreadable component): %w", err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("storage: target path traverses a symlink under storage root")
		}
	}
	return nil
}

func splitPath(rel string) []string {
	var parts []string
	for _, p := range strings.Split(rel, string(filepath.Separator)) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// openNoFollow opens path refusing to follow a trailing symlink, mirroring
// the teacher domain's O_NOFOLLOW use for write targets.
func openNoFollow(path string, flags int, mode os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flags|syscall.O_NOFOLLOW, mode)
}

// WriteBytes performs a non-atomic, traversal-safe, symlink-safe write:
// open with O_NOFOLLOW, truncate/create, write, set mode, and, when
// Fsync is set, fsync file and parent directory.
func (w *Writer) WriteBytes(targetPath string, data []byte) error {
	if err := pathpolicy.EnsureWithinRoot(w.Root, targetPath); err != nil {
		return err
	}
	parent := filepath.Dir(targetPath)
	if err := rejectSymlinksUnderRoot(w.Root, parent); err != nil {
		return err
	}
	if err := ensureDir(parent); err != nil {
		return fmt.Errorf("storage: create parent dir: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	f, err := openNoFollow(targetPath, flags, fileMode)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", targetPath, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("storage: write %s: %w", targetPath, err)
	}
	if err := f.Chmod(fileMode); err != nil {
		return fmt.Errorf("storage: chmod %s: %w", targetPath, err)
	}
	if w.Fsync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("storage: fsync %s: %w", targetPath, err)
		}
		fsyncDirBestEffort(parent)
	}
	return nil
}

// WriteAtomicBytes writes data to a temp file in the same directory as
// targetPath, sets its mode, then renames it over targetPath; when Fsync
// is set it also syncs the temp file and the parent directory. The temp file is removed on any
// failure path.
func (w *Writer) WriteAtomicBytes(targetPath string, data []byte) error {
	if err := pathpolicy.EnsureWithinRoot(w.Root, targetPath); err != nil {
		return err
	}
	parent := filepath.Dir(targetPath)
	if err := rejectSymlinksUnderRoot(w.Root, parent); err != nil {
		return err
	}
	if err := ensureDir(parent); err != nil {
		return fmt.Errorf("storage: create parent dir: %w", err)
	}

	tmp, err := os.CreateTemp(parent, ".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := func() error {
		if _, err := tmp.Write(data); err != nil {
			return err
		}
		if err := tmp.Chmod(fileMode); err != nil {
			return err
		}
		if w.Fsync {
			return tmp.Sync()
		}
		return nil
	}()
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage: write temp file: %w", writeErr)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage: rename into place: %w", err)
	}
	if w.Fsync {
		fsyncDirBestEffort(parent)
	}
	return nil
}

// MoveFileWithinRoot moves src to dst after validating both are within
// Root and dst's parent doesn't traverse a symlink.
func (w *Writer) MoveFileWithinRoot(src, dst string) error {
	if err := pathpolicy.EnsureWithinRoot(w.Root, src); err != nil {
		return err
	}
	if err := pathpolicy.EnsureWithinRoot(w.Root, dst); err != nil {
		return err
	}
	dstParent := filepath.Dir(dst)
	if err := rejectSymlinksUnderRoot(w.Root, dstParent); err != nil {
		return err
	}
	if err := ensureDir(dstParent); err != nil {
		return fmt.Errorf("storage: create dest dir: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("storage: move %s -> %s: %w", src, dst, err)
	}
	if w.Fsync {
		fsyncDirBestEffort(dstParent)
	}
	return nil
}

// StagingFile is one file to be written during a group commit: RelPath
// is relative to the staging directory and mirrors the path layout of
// the final commit location (e.g. "attachments/1_2_x.bin", "Ticket.pdf",
// "Ticket.pdf.json").
type StagingFile struct {
	RelPath string
	Data    []byte
}

// CommitGroup writes attachments, then the PDF, then the sidecar into a
// unique staging directory inside targetDir, next to the final files, then moves them into
// their final locations in that order (sidecar last, so its presence
// signals a complete archive). The staging directory is removed on every
// exit path.
func (w *Writer) CommitGroup(targetDir string, ticketID int64, pdfName string, pdfBytes []byte, sidecarName string, sidecarBytes []byte, attachments []StagingFile) error {
	stagingDir := filepath.Join(targetDir, fmt.Sprintf(".tmp-archiving-%d-%s", ticketID, uuid.NewString()[:8]))
	defer os.RemoveAll(stagingDir)

	if err := ensureDir(stagingDir); err != nil {
		return fmt.Errorf("storage: create staging dir: %w", err)
	}

	if len(attachments) > 0 {
		attachDir := filepath.Join(stagingDir, "attachments")
		if err := ensureDir(attachDir); err != nil {
			return fmt.Errorf("storage: create staging attachments dir: %w", err)
		}
		for _, a := range attachments {
			p := filepath.Join(stagingDir, a.RelPath)
			if err := w.WriteBytes(p, a.Data); err != nil {
				return err
			}
		}
	}

	pdfStagePath := filepath.Join(stagingDir, pdfName)
	if err := w.WriteBytes(pdfStagePath, pdfBytes); err != nil {
		return err
	}
	sidecarStagePath := filepath.Join(stagingDir, sidecarName)
	if err := w.WriteBytes(sidecarStagePath, sidecarBytes); err != nil {
		return err
	}

	if len(attachments) > 0 {
		attachDestDir := filepath.Join(targetDir, "attachments")
		for _, a := range attachments {
			src := filepath.Join(stagingDir, a.RelPath)
			dst := filepath.Join(attachDestDir, filepath.Base(a.RelPath))
			if err := w.MoveFileWithinRoot(src, dst); err != nil {
				return err
			}
		}
	}

	if err := w.MoveFileWithinRoot(pdfStagePath, filepath.Join(targetDir, pdfName)); err != nil {
		return err
	}
	if err := w.MoveFileWithinRoot(sidecarStagePath, filepath.Join(targetDir, sidecarName)); err != nil {
		return err
	}
	return nil
}
