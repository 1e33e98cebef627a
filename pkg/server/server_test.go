// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediagit/mediagit/modules/mediagit/index"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
)

func newTestRepoWithCommit(t *testing.T) *repository.Repository {
	t.Helper()
	dir := t.TempDir()
	repo, err := repository.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	oid, err := repo.Objects.Write(context.Background(), object.BlobObject, data)
	require.NoError(t, err)
	repo.Index.AddEntry(index.Entry{Path: "a.txt", OID: oid, Mode: filemode.Regular, Size: int64(len(data))})
	require.NoError(t, repo.Index.Write())

	sig := object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
	_, err = repo.Commit(context.Background(), sig, "initial commit")
	require.NoError(t, err)
	return repo
}

func newTestServer(t *testing.T, repo *repository.Repository) (*httptest.Server, []byte) {
	t.Helper()
	secret := []byte("test-secret")
	srv := NewServer(repo, Config{JWTSecret: secret})
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts, secret
}

func TestInfoRefsRequiresBearerToken(t *testing.T) {
	repo := newTestRepoWithCommit(t)
	ts, secret := newTestServer(t, repo)

	client, err := NewClient(ts.URL, "")
	require.NoError(t, err)
	_, err = client.InfoRefs(context.Background())
	require.Error(t, err)

	token, err := GenerateToken(secret, Download, time.Hour)
	require.NoError(t, err)
	client, err = NewClient(ts.URL, token)
	require.NoError(t, err)
	refs, err := client.InfoRefs(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, refs.Refs)
}

func TestDownloadTokenCannotPush(t *testing.T) {
	repo := newTestRepoWithCommit(t)
	ts, secret := newTestServer(t, repo)

	token, err := GenerateToken(secret, Download, time.Hour)
	require.NoError(t, err)
	client, err := NewClient(ts.URL, token)
	require.NoError(t, err)

	_, err = client.RefsUpdate(context.Background(), []RefUpdateRequest{{Name: "refs/heads/mainline", NewOID: plumbing.ZeroHash.String()}}, true)
	require.Error(t, err)
}

func TestObjectsWantThenPackRoundtrip(t *testing.T) {
	source := newTestRepoWithCommit(t)
	sourceSrv, sourceSecret := newTestServer(t, source)

	dlToken, err := GenerateToken(sourceSecret, Download, time.Hour)
	require.NoError(t, err)
	pullClient, err := NewClient(sourceSrv.URL, dlToken)
	require.NoError(t, err)

	head, err := source.Head(context.Background())
	require.NoError(t, err)

	packBytes, err := pullClient.ObjectsWant(context.Background(), []string{head.String()}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, packBytes)

	dest, err := repository.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dest.Close() })
	destSrv, destSecret := newTestServer(t, dest)

	ulToken, err := GenerateToken(destSecret, Upload, time.Hour)
	require.NoError(t, err)
	pushClient, err := NewClient(destSrv.URL, ulToken)
	require.NoError(t, err)
	require.NoError(t, pushClient.ObjectsPack(context.Background(), packBytes))

	exists, err := dest.Objects.Exists(context.Background(), head)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRefsUpdateRejectsStaleOldOID(t *testing.T) {
	repo := newTestRepoWithCommit(t)
	ts, secret := newTestServer(t, repo)

	token, err := GenerateToken(secret, Upload, time.Hour)
	require.NoError(t, err)
	client, err := NewClient(ts.URL, token)
	require.NoError(t, err)

	stale := plumbing.HashBytes([]byte("not-the-current-head")).String()
	resp, err := client.RefsUpdate(context.Background(), []RefUpdateRequest{
		{Name: "refs/heads/mainline", OldOID: &stale, NewOID: plumbing.HashBytes([]byte("new")).String()},
	}, false)
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "not fast-forward", resp.Results[0].Error)
}
