package wal

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogicalLog_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenLogicalLog(dir)
	require.NoError(t, err)
	defer func() { _ = log.Close() }()

	lsn1, err := log.AppendInsert("t", []byte("row1"))
	require.NoError(t, err)
	lsn2, err := log.AppendDelete("t", []byte("row2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), lsn1)
	assert.Equal(t, uint64(2), lsn2)

	require.NoError(t, log.Sync())

	var got []LogicalRecord
	require.NoError(t, log.Replay(func(rec LogicalRecord) error {
		got = append(got, rec)
		return nil
	}))

	require.Len(t, got, 2)
	assert.Equal(t, uint8(opInsert), got[0].Op)
	assert.Equal(t, "t", got[0].TableName)
	assert.Equal(t, []byte("row1"), got[0].Payload)
	assert.Equal(t, uint8(opDelete), got[1].Op)
	assert.Equal(t, []byte("row2"), got[1].Payload)
}

func TestLogicalLog_ReplayMissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenLogicalLog(dir)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	require.NoError(t, os.Remove(log.path))

	called := false
	err = log.Replay(func(rec LogicalRecord) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestLogicalLog_ReplayToleratesTornTailRecord(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenLogicalLog(dir)
	require.NoError(t, err)

	_, err = log.AppendInsert("t", []byte("full-record"))
	require.NoError(t, err)
	require.NoError(t, log.Sync())
	require.NoError(t, log.Close())

	// append a truncated second record directly to simulate a crash
	// mid-write of the next append.
	f, err := os.OpenFile(log.path, os.O_RDWR|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x4F, 0x47, 0x4F, 0x4C, 0x01, 0x00, opInsert})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var got []LogicalRecord
	err = log.Replay(func(rec LogicalRecord) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("full-record"), got[0].Payload)
}

func TestLogicalLog_AppendAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenLogicalLog(dir)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	_, err = log.AppendInsert("t", []byte("x"))
	assert.ErrorIs(t, err, ErrNoWALFile)
}
