package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_chat/platform/logger"
)

type seedConfig int

func (s seedConfig) GetSeedProducts() int  { return int(s) }
func (s seedConfig) GetSeedRandom() uint64 { return 0 }

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	productsFlag = 0
	cmd := &cobra.Command{}
	cmd.Flags().IntVarP(&productsFlag, "products", "n", 0, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestAskProductCount_RepromptsUntilPositive(t *testing.T) {
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader("abc\n-3\n\n25\nleft over\n"))

	n, err := askProductCount(in, &out)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, 2, strings.Count(out.String(), "Please enter a positive integer."))

	rest, _ := in.ReadString('\n')
	assert.Equal(t, "left over\n", rest)
}

func TestAskProductCount_AcceptsLastLineWithoutNewline(t *testing.T) {
	n, err := askProductCount(bufio.NewReader(strings.NewReader("7")), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestAskProductCount_EOF(t *testing.T) {
	_, err := askProductCount(bufio.NewReader(strings.NewReader("zero\n")), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestProductCount_Precedence(t *testing.T) {
	empty := bufio.NewReader(strings.NewReader(""))

	n, err := productCount(newCmd(t, "--products", "40"), seedConfig(10), empty, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	n, err = productCount(newCmd(t), seedConfig(10), empty, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = productCount(newCmd(t), seedConfig(0), bufio.NewReader(strings.NewReader("3\n")), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = productCount(newCmd(t, "-n", "0"), seedConfig(10), empty, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withRetry(ctx, logger.Discard(), "flaky", 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	boom := errors.New("boom")
	err = withRetry(ctx, logger.Discard(), "broken", 2, time.Millisecond, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = withRetry(cancelled, logger.Discard(), "cancelled", 3, time.Millisecond, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
