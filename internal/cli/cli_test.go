package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/lingosrs/internal/domain"
	"github.com/conorfennell/lingosrs/internal/storage"
	"github.com/conorfennell/lingosrs/internal/web"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportReviewAndDue(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	deck := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(deck, "deck.md"), []byte("Q: 学生\nA: student\n"), 0o644))

	out, err := run(t, "--db", dbPath, "import", deck, "--user", "u1", "--language", "chi_sim")
	require.NoError(t, err)
	assert.Contains(t, out, "created 1")

	// Importing again reuses the source.
	out, err = run(t, "--db", dbPath, "import", deck, "--user", "u1", "--language", "chi_sim")
	require.NoError(t, err)
	assert.Contains(t, out, "created 0")

	out, err = run(t, "--db", dbPath, "source", "list", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, deck)

	out, err = run(t, "--db", dbPath, "due", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "学生")

	db, err := storage.Open(context.Background(), storage.DriverSQLite, dbPath)
	require.NoError(t, err)
	due, err := db.ListDueCards(context.Background(), "u1", time.Now().UTC())
	require.NoError(t, err)
	db.Close()
	require.Len(t, due, 1)

	_, err = run(t, "--db", dbPath, "review", due[0].ID, "Perfect", "--user", "u1")
	assert.Error(t, err)

	out, err = run(t, "--db", dbPath, "review", due[0].ID, "Good", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "is now Learning")

	out, err = run(t, "--db", dbPath, "show", due[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "学生")
	assert.Contains(t, out, "Learning (step 1)")

	_, err = run(t, "--db", dbPath, "show", "no-such-card")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	out, err = run(t, "--db", dbPath, "due", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "No cards due.")

	out, err = run(t, "--db", dbPath, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "created 0")
}

func TestSourceCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	deck := t.TempDir()

	out, err := run(t, "--db", dbPath, "source", "add", deck, "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Added local source")
	id := strings.TrimSuffix(strings.TrimSpace(out[strings.LastIndex(out, "(")+1:]), ")")

	_, err = run(t, "--db", dbPath, "source", "add", deck, "--user", "u1")
	assert.Error(t, err)

	_, err = run(t, "--db", dbPath, "source", "remove", id, "--user", "u2")
	assert.Error(t, err)

	out, err = run(t, "--db", dbPath, "source", "remove", id, "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed source "+id)
}

func TestUserFlagIsRequired(t *testing.T) {
	_, err := run(t, "--db", filepath.Join(t.TempDir(), "cli.db"), "due")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	_, err := run(t, "token", "--user", "u1")
	assert.Error(t, err, "a secret is required")

	t.Setenv("LINGOSRS_AUTH__JWT_SECRET", "0123456789abcdef0123")
	out, err := run(t, "token", "--user", "u1", "--ttl", "1h")
	require.NoError(t, err)

	auth, err := web.NewAuthenticator("0123456789abcdef0123", "")
	require.NoError(t, err)
	sub, err := auth.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)
}
