// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-witness
//
// go-witness is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-witness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-witness.  If not, see <https://www.gnu.org/licenses/>.

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestFileExistsAndIsDir(t *testing.T) {
	testpartitioning.PartitionTest(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "key")
	require.True(t, FileExists(dir))
	require.True(t, IsDir(dir))
	require.False(t, FileExists(file))

	require.NoError(t, os.WriteFile(file, []byte("k"), 0600))
	require.True(t, FileExists(file))
	require.False(t, IsDir(file))
	require.False(t, IsDir(filepath.Join(dir, "missing")))
}
