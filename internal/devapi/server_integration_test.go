//go:build integration
// +build integration

package devapi_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"blog-client/internal/api"
	"blog-client/internal/devapi"
	"blog-client/internal/post"
	"blog-client/internal/session"
	"blog-client/internal/testutil"
	"blog-client/internal/tokenstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "blog",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://test:test@%s:%s/blog?sslmode=disable", host, port.Port())
}

func TestEndToEnd_PostgresBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := devapi.OpenStorage(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv, err := devapi.New(ctx, devapi.Options{HashCost: bcrypt.MinCost, DB: db})
	require.NoError(t, err)
	server := testutil.NewServer(t, srv.Handler)

	client := api.NewClient(server.URL + devapi.BasePath)
	manager := session.NewManager(client, tokenstore.NewMemoryStore())
	manager.Init(ctx)
	posts := post.NewStore(client, manager)

	reg := manager.Register(ctx, "erin@example.com", "erin", "password123")
	require.True(t, reg.Success, reg.Error)

	for i := 1; i <= 2; i++ {
		created := posts.CreatePost(ctx, api.NewForm().Set("title", "Same Title").Set("category", "3"))
		require.True(t, created.Success, created.Error)
	}

	list := posts.FetchPosts(ctx)
	require.True(t, list.Success, list.Error)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "same-title-2", list.Data[0].Slug)
	assert.Equal(t, "Travel", list.Data[0].Category.Title)

	detail := posts.FetchPostByID(ctx, "same-title")
	require.True(t, detail.Success, detail.Error)
	assert.Equal(t, 1, detail.Data.Views)

	deleted := posts.DeletePost(ctx, "same-title")
	require.True(t, deleted.Success, deleted.Error)
	assert.Len(t, posts.Posts(), 1)
}
