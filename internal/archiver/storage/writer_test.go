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

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBytes_WritesAndFsyncs(t *testing.T) {
	root := t.TempDir()
	w := New(root, true)

	target := filepath.Join(root, "user1", "2025", "Ticket.pdf")
	err := w.WriteBytes(target, []byte("hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())
}

func TestWriteBytes_RejectsEscapeOutsideRoot(t *testing.T) {
	root := t.TempDir()
	w := New(root, false)

	err := w.WriteBytes(filepath.Join(root, "..", "escaped.pdf"), []byte("x"))
	assert.Error(t, err)
}

func TestWriteBytes_RejectsSymlinkedParent(t *testing.T) {
	root := t.TempDir()
	w := New(root, false)

	outside := t.TempDir()
	linkPath := filepath.Join(root, "linked")
	require.NoError(t, os.Symlink(outside, linkPath))

	err := w.WriteBytes(filepath.Join(linkPath, "Ticket.pdf"), []byte("x"))
	assert.Error(t, err)
}

func TestWriteAtomicBytes_OverwritesCompletelyOrNotAtAll(t *testing.T) {
	root := t.TempDir()
	w := New(root, true)
	target := filepath.Join(root, "Ticket.pdf.json")

	require.NoError(t, w.WriteAtomicBytes(target, []byte(`{"v":1}`)))
	require.NoError(t, w.WriteAtomicBytes(target, []byte(`{"v":2}`)))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp files")
}

func TestCommitGroup_WritesPdfSidecarAndAttachmentsInFinalLocations(t *testing.T) {
	root := t.TempDir()
	w := New(root, true)
	targetDir := filepath.Join(root, "user1", "2025")

	attachments := []StagingFile{
		{RelPath: "attachments/1_2_file.bin", Data: []byte("attach-data")},
	}
	err := w.CommitGroup(targetDir, 42, "Ticket.pdf", []byte("%PDF-data"), "Ticket.pdf.json", []byte(`{"sha256":"x"}`), attachments)
	require.NoError(t, err)

	pdfData, err := os.ReadFile(filepath.Join(targetDir, "Ticket.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-data", string(pdfData))

	sidecarData, err := os.ReadFile(filepath.Join(targetDir, "Ticket.pdf.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"sha256":"x"}`, string(sidecarData))

	attachData, err := os.ReadFile(filepath.Join(targetDir, "attachments", "1_2_file.bin"))
	require.NoError(t, err)
	assert.Equal(t, "attach-data", string(attachData))

	entries, err := os.ReadDir(targetDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-archiving-", "staging dir must be removed after commit")
	}
}

func TestCommitGroup_CleansUpStagingOnFailure(t *testing.T) {
	root := t.TempDir()
	w := New(root, true)
	targetDir := filepath.Join(root, "user1", "2025")
	require.NoError(t, os.MkdirAll(targetDir, 0o750))

	// Poison the attachments destination by pre-creating it as a file so
	// the mkdir inside MoveFileWithinRoot's ensureDir fails.
	attachDest := filepath.Join(targetDir, "attachments")
	require.NoError(t, os.WriteFile(attachDest, []byte("not a dir"), 0o640))

	attachments := []StagingFile{
		{RelPath: "attachments/1_2_file.bin", Data: []byte("attach-data")},
	}
	err := w.CommitGroup(targetDir, 42, "Ticket.pdf", []byte("%PDF-data"), "Ticket.pdf.json", []byte(`{}`), attachments)
	assert.Error(t, err)

	entries, err := os.ReadDir(targetDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-archiving-", "staging dir must be removed even on failure")
	}
}

func TestMoveFileWithinRoot_RejectsDestinationOutsideRoot(t *testing.T) {
	root := t.TempDir()
	w := New(root, false)
	src := filepath.Join(root, "src.pdf")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o640))

	err := w.MoveFileWithinRoot(src, filepath.Join(root, "..", "dst.pdf"))
	assert.Error(t, err)
}
