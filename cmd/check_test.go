package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckResolvesFixture(t *testing.T) {
	out := &strings.Builder{}
	errOut := &strings.Builder{}
	CheckCmd.SetOut(out)
	CheckCmd.SetErr(errOut)

	err := runCheck(CheckCmd, []string{"testdata/eq.yaml"})
	require.NoError(t, err, "stderr: %s", errOut.String())

	assert.Contains(t, out.String(), "Eq<Array<Array<int>>> => ArrayEq(ArrayEq(EqInt))")
	assert.Contains(t, out.String(), "Eq<int> => EqInt")
	assert.Empty(t, errOut.String())
}

func TestCheckReportsMissingWitness(t *testing.T) {
	out := &strings.Builder{}
	errOut := &strings.Builder{}
	CheckCmd.SetOut(out)
	CheckCmd.SetErr(errOut)

	err := runCheck(CheckCmd, []string{"testdata/missing.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 constraints could not be resolved")
	assert.Contains(t, errOut.String(), "no witness found for 'Eq<Widget>'")
}
