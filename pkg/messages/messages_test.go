package messages

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/authkeep/pkg/host/hosttest"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopiesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, "en")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "messages", "messages_en.yml"), m.File())
	_, err = os.Stat(m.File())
	assert.NoError(t, err)

	assert.Equal(t, []string{"§2Successful login!"}, m.Retrieve(Login))
}

func TestUnknownLanguageFallsBackToEnglish(t *testing.T) {
	m, err := New(t.TempDir(), "xx")
	require.NoError(t, err)
	assert.Equal(t, "§cWrong password!", m.RetrieveSingle(WrongPassword))
}

func TestMissingKeyUsesBundledDefault(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, "it")
	require.NoError(t, err)

	// The Italian catalogue has no same_nick entry.
	assert.Equal(t, []string{"§4The same username is already playing on the server!"}, m.Retrieve(SameNickOnline))
	assert.Equal(t, []string{"§2Autenticazione eseguita correttamente!"}, m.Retrieve(Login))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "§aone\n§Ltwo", format("&aone%nl%§Ltwo"))
	assert.Equal(t, "§fwhite §lbold & more", format("&Fwhite &Lbold & more"))
	assert.Equal(t, "white bold", StripColors("§fwhite §lbold"))
}

func TestRetrieveSingleTags(t *testing.T) {
	m, err := New(t.TempDir(), "en")
	require.NoError(t, err)

	assert.Equal(t, "§2Purged 3 accounts inactive for 60 days.", m.RetrieveSingle(Purged, "3", "60"))
	assert.Contains(t, m.RetrieveSingle(Purged, "3"), "%count%")

	welcome := m.RetrieveSingle(Welcome, Info{Player: "Steve", Online: 2, Logins: 1, World: "world", Version: "1.12.2", IP: "10.0.0.1"}.Replacements()...)
	assert.Equal(t, "§6Welcome Steve!\n§72 online, 1 logged in, world world, server 1.12.2, from 10.0.0.1", welcome)
}

func TestSend(t *testing.T) {
	m, err := New(t.TempDir(), "en")
	require.NoError(t, err)
	e := hosttest.NewEntity("steve", "", models.Location{})

	m.Send(e, Logout)
	m.Send(e, Purged, "1", "2")
	assert.Equal(t, []string{"§2Logged-out successfully!", "§2Purged 1 accounts inactive for 2 days."}, e.Messages())
}

func TestReloadAndWatch(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, "en")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(m.File(), []byte("login: 'edited'\n"), 0644))
	require.NoError(t, m.Reload())
	assert.Equal(t, []string{"edited"}, m.Retrieve(Login))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	require.NoError(t, os.WriteFile(m.File(), []byte("login: 'watched'\n"), 0644))
	assert.Eventually(t, func() bool {
		lines := m.Retrieve(Login)
		return len(lines) == 1 && lines[0] == "watched"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestReloadRejectsMalformedFile(t *testing.T) {
	m, err := New(t.TempDir(), "en")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(m.File(), []byte("login: [unterminated\n"), 0644))
	assert.Error(t, m.Reload())
	assert.Equal(t, []string{"§2Successful login!"}, m.Retrieve(Login))
}
