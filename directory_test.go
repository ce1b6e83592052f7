package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
)

func TestUsers_Table(t *testing.T) {
	api := newFakeAPI(t, "good-access")
	s := newTestSetup(t, api.srv.URL)
	s.saveToken(t, "good-access", "good-refresh")

	out, err := runCLI(t, nil, "--config", s.configPath, "users")
	require.NoError(t, err)

	assert.Contains(t, out, "EMAIL")
	assert.Contains(t, out, "ada@example.org")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "invited")
}

func TestUsers_AllJSON(t *testing.T) {
	api := newFakeAPI(t, "good-access")
	s := newTestSetup(t, api.srv.URL)
	s.saveToken(t, "good-access", "good-refresh")

	out, err := runCLI(t, nil, "--config", s.configPath, "--json", "users", "--all")
	require.NoError(t, err)

	var got []centerdevice.User
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, centerdevice.RoleAdmin, got[0].Role)
	assert.Equal(t, centerdevice.UserBlocked, got[1].Status)
}

func TestCollections(t *testing.T) {
	api := newFakeAPI(t, "good-access")
	s := newTestSetup(t, api.srv.URL)
	s.saveToken(t, "good-access", "good-refresh")

	out, err := runCLI(t, nil, "--config", s.configPath, "collections")
	require.NoError(t, err)
	assert.Contains(t, out, "Mine")
	assert.NotContains(t, out, "Shared")

	out, err = runCLI(t, nil, "--config", s.configPath, "--json", "collections", "--public")
	require.NoError(t, err)

	var got []centerdevice.Collection
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []centerdevice.Collection{
		{ID: "c1", Public: false, Name: "Mine"},
		{ID: "c2", Public: true, Name: "Shared"},
	}, got)
}

func TestCollections_MissingCredentials(t *testing.T) {
	isolateCLIEnv(t)
	t.Setenv("CENTERDEVICE_ACCESS_TOKEN", "a")

	_, err := runCLI(t, nil, "collections")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id")
}
