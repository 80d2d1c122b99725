package main

import (
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func execute(cmd *cobra.Command, args ...string) error {
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestGameSetRequiresCoreFlags(t *testing.T) {
	err := execute(gameSetCmd())
	require.Error(t, err)
	require.Contains(t, err.Error(), "--player")
}

func TestGameSetRejectsMalformedDate(t *testing.T) {
	err := execute(gameSetCmd(),
		"--player", "p1", "--name", "A", "--game", "g1",
		"--season", "2023-24", "--date", "24/10/2023")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--date")
}

func TestPlayerSetRequiresIDAndName(t *testing.T) {
	err := execute(playerSetCmd(), "--id", "p1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--name")
}

func TestPlayerSetRejectsMalformedBirthdate(t *testing.T) {
	err := execute(playerSetCmd(), "--id", "p1", "--name", "A", "--birthdate", "Feb 19 1995")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--birthdate")
}

func TestOverrideSetRequiresPlayerAndSeason(t *testing.T) {
	err := execute(overrideSetCmd(), "--player", "p1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--season")
}
